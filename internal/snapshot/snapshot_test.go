package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorhub/apiserver/internal/store/memory"
	"github.com/tutorhub/apiserver/types"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) EnsureBucket(context.Context) error { return nil }

func (b *fakeBucket) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *fakeBucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (b *fakeBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func newTestExporter(t *testing.T, bucket Bucket) (*Exporter, *memory.Store) {
	t.Helper()
	mem := memory.New()
	exporter := NewExporter(bucket, mem.Users, mem.Profiles, mem.Sessions, mem.Reviews,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return exporter, mem
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	exporter, mem := newTestExporter(t, bucket)
	exporter.now = func() time.Time { return time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC) }

	_, err := mem.Users.Create(ctx, types.User{ID: "u1", Name: "Tina", Email: "tina@example.com", Role: types.RoleTutor, PasswordHash: "hash"})
	require.NoError(t, err)
	_, err = mem.Profiles.Create(ctx, types.TutorProfile{ID: "p1", TutorID: "u1", Subject: "Math", PricePerHour: 100})
	require.NoError(t, err)
	_, err = mem.Profiles.Create(ctx, types.TutorProfile{ID: "p2", TutorID: "u1", Subject: "Physics", PricePerHour: 90})
	require.NoError(t, err)

	manifest, err := exporter.Export(ctx)
	require.NoError(t, err)

	prefix := "snapshots/20261017T083000Z/"
	assert.Equal(t, prefix, manifest.Prefix)
	assert.Equal(t, map[string]int{"users": 1, "profiles": 2, "sessions": 0, "reviews": 0}, manifest.Counts)

	keys, err := bucket.List(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{
		prefix + "manifest.json",
		prefix + "profiles.json",
		prefix + "reviews.json",
		prefix + "sessions.json",
		prefix + "users.json",
	}, keys)

	assert.JSONEq(t, "[]", string(bucket.objects[prefix+"sessions.json"]))
	assert.NotContains(t, string(bucket.objects[prefix+"users.json"]), "hash")

	var stored Manifest
	require.NoError(t, json.Unmarshal(bucket.objects[prefix+"manifest.json"], &stored))
	assert.Equal(t, manifest.Counts, stored.Counts)
}

func TestExportUploadFailure(t *testing.T) {
	bucket := newFakeBucket()
	bucket.putErr = errors.New("access denied")
	exporter, _ := newTestExporter(t, bucket)

	_, err := exporter.Export(context.Background())
	assert.ErrorIs(t, err, bucket.putErr)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	exporter, _ := newTestExporter(t, bucket)

	stamps := []time.Time{
		time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
	}
	for _, stamp := range stamps {
		exporter.now = func() time.Time { return stamp }
		_, err := exporter.Export(ctx)
		require.NoError(t, err)
	}
	bucket.objects["snapshots/stray.json"] = []byte("{}")

	removed, err := exporter.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/20261015T000000Z/"}, removed)

	left, err := bucket.List(ctx, "snapshots/20261015T000000Z/")
	require.NoError(t, err)
	assert.Empty(t, left)
	left, err = bucket.List(ctx, "snapshots/20261017T000000Z/")
	require.NoError(t, err)
	assert.Len(t, left, 5)
	assert.Contains(t, bucket.objects, "snapshots/stray.json")

	removed, err = exporter.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, err = exporter.Prune(ctx, 0)
	assert.Error(t, err)
}
