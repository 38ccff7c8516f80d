// Package snapshot exports the four collections to object storage as JSON
// documents under snapshots/<UTC timestamp>/.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/tutorhub/apiserver/internal/services"
	"github.com/tutorhub/apiserver/types"
)

const (
	rootPrefix      = "snapshots/"
	timestampLayout = "20060102T150405Z"
)

// Bucket is the subset of storage.ObjectStorage used here.
type Bucket interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Exporter reads every collection and writes one object per collection.
type Exporter struct {
	bucket   Bucket
	users    services.UserRepository
	profiles services.ProfileRepository
	sessions services.SessionRepository
	reviews  services.ReviewRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewExporter(
	bucket Bucket,
	users services.UserRepository,
	profiles services.ProfileRepository,
	sessions services.SessionRepository,
	reviews services.ReviewRepository,
	logger *slog.Logger,
) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		bucket:   bucket,
		users:    users,
		profiles: profiles,
		sessions: sessions,
		reviews:  reviews,
		logger:   logger,
		now:      time.Now,
	}
}

// Manifest describes one completed export.
type Manifest struct {
	Prefix  string         `json:"prefix"`
	TakenAt time.Time      `json:"takenAt"`
	Counts  map[string]int `json:"counts"`
}

// Export writes users.json, profiles.json, sessions.json, reviews.json and
// finally manifest.json. A snapshot without a manifest is incomplete.
func (e *Exporter) Export(ctx context.Context) (Manifest, error) {
	if err := e.bucket.EnsureBucket(ctx); err != nil {
		return Manifest{}, fmt.Errorf("ensure bucket: %w", err)
	}

	takenAt := e.now().UTC()
	manifest := Manifest{
		Prefix:  rootPrefix + takenAt.Format(timestampLayout) + "/",
		TakenAt: takenAt,
		Counts:  map[string]int{},
	}

	users, err := e.users.List(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("list users: %w", err)
	}
	profiles, err := e.allProfiles(ctx)
	if err != nil {
		return Manifest{}, err
	}
	sessions, err := e.sessions.List(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("list sessions: %w", err)
	}
	reviews, err := e.reviews.List(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("list reviews: %w", err)
	}

	documents := []struct {
		name  string
		count int
		value any
	}{
		{"users", len(users), nonNil(users)},
		{"profiles", len(profiles), nonNil(profiles)},
		{"sessions", len(sessions), nonNil(sessions)},
		{"reviews", len(reviews), nonNil(reviews)},
	}
	for _, doc := range documents {
		if err := e.putJSON(ctx, manifest.Prefix+doc.name+".json", doc.value); err != nil {
			return Manifest{}, err
		}
		manifest.Counts[doc.name] = doc.count
	}
	if err := e.putJSON(ctx, manifest.Prefix+"manifest.json", manifest); err != nil {
		return Manifest{}, err
	}

	e.logger.InfoContext(ctx, "snapshot exported",
		slog.String("prefix", manifest.Prefix),
		slog.Int("users", len(users)),
		slog.Int("profiles", len(profiles)),
		slog.Int("sessions", len(sessions)),
		slog.Int("reviews", len(reviews)),
	)
	return manifest, nil
}

// Prune deletes every snapshot except the newest keep ones and returns the
// prefixes removed.
func (e *Exporter) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1")
	}
	keys, err := e.bucket.List(ctx, rootPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	byPrefix := map[string][]string{}
	for _, key := range keys {
		rest := strings.TrimPrefix(key, rootPrefix)
		stamp, _, ok := strings.Cut(rest, "/")
		if !ok || stamp == "" {
			continue
		}
		prefix := rootPrefix + stamp + "/"
		byPrefix[prefix] = append(byPrefix[prefix], key)
	}

	prefixes := make([]string, 0, len(byPrefix))
	for prefix := range byPrefix {
		prefixes = append(prefixes, prefix)
	}
	// Timestamps sort lexically.
	slices.Sort(prefixes)
	if len(prefixes) <= keep {
		return nil, nil
	}

	removed := prefixes[:len(prefixes)-keep]
	for _, prefix := range removed {
		for _, key := range byPrefix[prefix] {
			if err := e.bucket.Delete(ctx, key); err != nil {
				return nil, fmt.Errorf("delete %s: %w", key, err)
			}
		}
		e.logger.InfoContext(ctx, "snapshot pruned", slog.String("prefix", prefix))
	}
	return removed, nil
}

func (e *Exporter) allProfiles(ctx context.Context) ([]types.TutorProfile, error) {
	total, err := e.profiles.Count(ctx, types.ProfileFilter{})
	if err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	profiles, err := e.profiles.Search(ctx, types.ProfileFilter{}, 0, total)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

func (e *Exporter) putJSON(ctx context.Context, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path.Base(key), err)
	}
	if err := e.bucket.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
