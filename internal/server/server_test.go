package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorhub/apiserver/config"
	"github.com/tutorhub/apiserver/internal/store/memory"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T, counter *fakeCounter) *httptest.Server {
	t.Helper()
	mem := memory.New()
	cfg := config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour, CookieName: "token"},
		HTTP: config.HTTPConfig{AllowedOrigins: []string{"http://localhost:*"}, DefaultPageSize: 6},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 100, Burst: 0},
	}
	deps := Dependencies{
		Repos: Repositories{
			Users:    mem.Users,
			Profiles: mem.Profiles,
			Sessions: mem.Sessions,
			Reviews:  mem.Reviews,
		},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		HashCost: bcrypt.MinCost,
	}
	if counter != nil {
		deps.RateLimiter = counter
	}
	router, err := NewRouter(cfg, deps)
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type apiClient struct {
	t       *testing.T
	baseURL string
	http    *http.Client
}

func newAPIClient(t *testing.T, baseURL string) *apiClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, baseURL: baseURL, http: &http.Client{Jar: jar}}
}

func (c *apiClient) call(method, path string, payload any, out any) int {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type userBody struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type authBody struct {
	Token string   `json:"token"`
	User  userBody `json:"user"`
}

type profileBody struct {
	ID          string  `json:"id"`
	TutorID     string  `json:"tutorId"`
	Subject     string  `json:"subject"`
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"ratingCount"`
}

type sessionBody struct {
	ID        string `json:"id"`
	ProfileID string `json:"profileId"`
	Price     int64  `json:"price"`
	Status    string `json:"status"`
	Paid      bool   `json:"paid"`
	Completed bool   `json:"completed"`
}

type errorBody struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details"`
}

func (c *apiClient) register(name, role string) userBody {
	c.t.Helper()
	var auth authBody
	status := c.call(http.MethodPost, "/auth/register", map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret", "role": role,
	}, &auth)
	require.Equal(c.t, http.StatusCreated, status)
	require.NotEmpty(c.t, auth.Token)
	return auth.User
}

func TestRouter_BookingLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	tutor := newAPIClient(t, srv.URL)
	student := newAPIClient(t, srv.URL)
	anon := newAPIClient(t, srv.URL)

	tutorUser := tutor.register("tina", "tutor")
	student.register("sam", "student")

	var profile profileBody
	require.Equal(t, http.StatusCreated, tutor.call(http.MethodPost, "/profiles", map[string]any{
		"subject": "Math", "pricePerHour": "100", "availableTimes": []string{"morning"},
	}, &profile))
	require.Equal(t, http.StatusCreated, tutor.call(http.MethodPost, "/profiles", map[string]any{
		"subject": "Physics", "pricePerHour": 80,
	}, nil))

	var conflict errorBody
	assert.Equal(t, http.StatusConflict, tutor.call(http.MethodPost, "/profiles", map[string]any{
		"subject": "MATH", "pricePerHour": 1,
	}, &conflict))
	assert.Equal(t, profile.ID, conflict.Details["id"])

	assert.Equal(t, http.StatusForbidden, student.call(http.MethodPost, "/profiles", map[string]any{
		"subject": "Art", "pricePerHour": 1,
	}, nil))
	assert.Equal(t, http.StatusUnauthorized, anon.call(http.MethodPost, "/profiles", map[string]any{
		"subject": "Art", "pricePerHour": 1,
	}, nil))

	assert.Equal(t, http.StatusBadRequest, student.call(http.MethodPost, "/sessions", map[string]any{
		"tutorId": tutorUser.ID, "profileId": profile.ID, "dateTime": "2026-11-02T09:00", "duration": 5,
	}, nil))
	assert.Equal(t, http.StatusForbidden, tutor.call(http.MethodPost, "/sessions", map[string]any{
		"tutorId": tutorUser.ID, "profileId": profile.ID, "dateTime": "2026-11-02T09:00", "duration": 1,
	}, nil))

	var session sessionBody
	require.Equal(t, http.StatusOK, student.call(http.MethodPost, "/sessions", map[string]any{
		"tutorId": tutorUser.ID, "profileId": profile.ID, "dateTime": "2026-11-02T09:00", "duration": "2",
	}, &session))
	assert.Equal(t, int64(200), session.Price)
	assert.Equal(t, "pending", session.Status)

	var blocked errorBody
	assert.Equal(t, http.StatusBadRequest, tutor.call(http.MethodDelete, "/profiles/"+profile.ID, nil, &blocked))
	assert.Equal(t, float64(1), blocked.Details["blockingSessions"])

	assert.Equal(t, http.StatusBadRequest, tutor.call(http.MethodPost, "/sessions/"+session.ID+"/complete", nil, nil))
	assert.Equal(t, http.StatusForbidden, student.call(http.MethodPost, "/sessions/"+session.ID+"/complete", nil, nil))

	var payment struct {
		Message string      `json:"message"`
		Session sessionBody `json:"session"`
	}
	require.Equal(t, http.StatusOK, student.call(http.MethodPost, "/payments/mock", map[string]string{"sessionId": session.ID}, &payment))
	assert.True(t, payment.Session.Paid)
	assert.Equal(t, http.StatusNotFound, student.call(http.MethodPost, "/payments/mock", map[string]string{"sessionId": "nope"}, nil))

	require.Equal(t, http.StatusOK, tutor.call(http.MethodPost, "/sessions/"+session.ID+"/complete", nil, nil))

	assert.Equal(t, http.StatusBadRequest, student.call(http.MethodPost, "/reviews", map[string]any{
		"sessionId": session.ID, "rating": 6,
	}, nil))
	require.Equal(t, http.StatusOK, student.call(http.MethodPost, "/reviews", map[string]any{
		"sessionId": session.ID, "rating": 5, "comment": "great",
	}, nil))
	assert.Equal(t, http.StatusConflict, student.call(http.MethodPost, "/reviews", map[string]any{
		"sessionId": session.ID, "rating": 4,
	}, nil))

	var mine []profileBody
	require.Equal(t, http.StatusOK, tutor.call(http.MethodGet, "/profiles/mine", nil, &mine))
	require.Len(t, mine, 2)
	for _, p := range mine {
		assert.Equal(t, 5.0, p.Rating)
		assert.Equal(t, 1, p.RatingCount)
	}

	var detail struct {
		TutorName string `json:"tutorName"`
		Reviews   []struct {
			StudentName string `json:"studentName"`
			Rating      int    `json:"rating"`
		} `json:"reviews"`
	}
	require.Equal(t, http.StatusOK, anon.call(http.MethodGet, "/profiles/"+profile.ID+"/detail", nil, &detail))
	assert.Equal(t, "tina", detail.TutorName)
	require.Len(t, detail.Reviews, 1)
	assert.Equal(t, "sam", detail.Reviews[0].StudentName)

	var detailed []struct {
		Subject     string `json:"subject"`
		TutorName   string `json:"tutorName"`
		StudentName string `json:"studentName"`
	}
	require.Equal(t, http.StatusOK, student.call(http.MethodGet, "/sessions/mine/detailed", nil, &detailed))
	require.Len(t, detailed, 1)
	assert.Equal(t, "Math", detailed[0].Subject)
	assert.Equal(t, "tina", detailed[0].TutorName)

	var stats map[string]any
	require.Equal(t, http.StatusOK, tutor.call(http.MethodGet, "/stats", nil, &stats))
	assert.Equal(t, "5.0", stats["avgRating"])
	assert.Equal(t, float64(200), stats["totalEarned"])

	require.Equal(t, http.StatusOK, student.call(http.MethodGet, "/stats", nil, &stats))
	assert.Equal(t, float64(200), stats["totalSpent"])

	var deleted struct {
		Message string      `json:"message"`
		Profile profileBody `json:"profile"`
	}
	require.Equal(t, http.StatusOK, tutor.call(http.MethodDelete, "/profiles/"+profile.ID, nil, &deleted))
	assert.Equal(t, profile.ID, deleted.Profile.ID)
	assert.Equal(t, http.StatusNotFound, anon.call(http.MethodGet, "/profiles/"+profile.ID+"/detail", nil, nil))
}

func TestRouter_MalformedIdentifiers(t *testing.T) {
	srv := newTestServer(t, nil)
	tutor := newAPIClient(t, srv.URL)
	student := newAPIClient(t, srv.URL)

	tutorUser := tutor.register("tara", "tutor")
	student.register("sid", "student")

	var profile profileBody
	require.Equal(t, http.StatusCreated, tutor.call(http.MethodPost, "/profiles", map[string]any{
		"subject": "Chemistry", "pricePerHour": 50,
	}, &profile))

	assert.Equal(t, http.StatusNotFound, tutor.call(http.MethodGet, "/profiles/foo/detail", nil, nil))
	assert.Equal(t, http.StatusNotFound, tutor.call(http.MethodPost, "/sessions/x/complete", nil, nil))
	assert.Equal(t, http.StatusNotFound, student.call(http.MethodPost, "/payments/mock", map[string]string{"sessionId": "x"}, nil))

	var session sessionBody
	require.Equal(t, http.StatusOK, student.call(http.MethodPost, "/sessions", map[string]any{
		"tutorId": tutorUser.ID, "profileId": "undefined", "dateTime": "2026-11-01T09:00", "duration": 1,
	}, &session))
	assert.Equal(t, profile.ID, session.ProfileID)
	assert.Equal(t, int64(50), session.Price)
}

func TestRouter_ProfileListing(t *testing.T) {
	srv := newTestServer(t, nil)
	anon := newAPIClient(t, srv.URL)

	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		c := newAPIClient(t, srv.URL)
		c.register("tutor-"+name, "tutor")
		require.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/profiles", map[string]any{
			"subject": "Math", "pricePerHour": 100, "location": "Hanoi",
		}, nil))
	}

	var page struct {
		Tutors []struct {
			TutorName string `json:"tutorName"`
		} `json:"tutors"`
		Pagination struct {
			Total       int  `json:"total"`
			TotalPages  int  `json:"totalPages"`
			CurrentPage int  `json:"currentPage"`
			HasNext     bool `json:"hasNext"`
		} `json:"pagination"`
	}
	require.Equal(t, http.StatusOK, anon.call(http.MethodGet, "/profiles?subject=MATH", nil, &page))
	assert.Equal(t, 7, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Len(t, page.Tutors, 6)
	assert.True(t, page.Pagination.HasNext)
	assert.Equal(t, "tutor-a", page.Tutors[0].TutorName)

	require.Equal(t, http.StatusOK, anon.call(http.MethodGet, "/profiles?page=99", nil, &page))
	assert.Equal(t, 2, page.Pagination.CurrentPage)
	assert.Len(t, page.Tutors, 1)

	assert.Equal(t, http.StatusBadRequest, anon.call(http.MethodGet, "/profiles?minPrice=cheap", nil, nil))
}

func TestRouter_AuthFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newAPIClient(t, srv.URL)

	assert.Equal(t, http.StatusUnauthorized, c.call(http.MethodGet, "/auth/me", nil, nil))
	user := c.register("amy", "student")

	var me userBody
	require.Equal(t, http.StatusOK, c.call(http.MethodGet, "/auth/me", nil, &me))
	assert.Equal(t, user.ID, me.ID)

	assert.Equal(t, http.StatusConflict, newAPIClient(t, srv.URL).call(http.MethodPost, "/auth/register", map[string]string{
		"name": "amy2", "email": "AMY@example.com", "password": "x", "role": "student",
	}, nil))
	assert.Equal(t, http.StatusBadRequest, newAPIClient(t, srv.URL).call(http.MethodPost, "/auth/register", map[string]string{
		"name": "zed", "email": "zed@example.com", "password": "x", "role": "admin",
	}, nil))

	require.Equal(t, http.StatusOK, c.call(http.MethodPost, "/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.call(http.MethodGet, "/auth/me", nil, nil))

	assert.Equal(t, http.StatusUnauthorized, c.call(http.MethodPost, "/auth/login", map[string]string{
		"email": "amy@example.com", "password": "wrong",
	}, nil))
	var auth authBody
	require.Equal(t, http.StatusOK, c.call(http.MethodPost, "/auth/login", map[string]string{
		"email": "amy@example.com", "password": "secret",
	}, &auth))
	assert.Equal(t, user.ID, auth.User.ID)
	assert.Equal(t, http.StatusOK, c.call(http.MethodGet, "/auth/me", nil, nil))
}

func TestRouter_RateLimitsAuth(t *testing.T) {
	counter := &fakeCounter{}
	srv := newTestServer(t, counter)
	c := newAPIClient(t, srv.URL)

	counter.next.Store(101)
	assert.Equal(t, http.StatusTooManyRequests, c.call(http.MethodPost, "/auth/login", map[string]string{
		"email": "x@example.com", "password": "x",
	}, nil))

	// Other route groups are not throttled.
	counter.next.Store(1000)
	assert.Equal(t, http.StatusOK, c.call(http.MethodGet, "/healthz", nil, nil))
}

func TestRouter_Metrics(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newAPIClient(t, srv.URL)
	require.Equal(t, http.StatusOK, c.call(http.MethodGet, "/healthz", nil, nil))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tutorhub_http_requests_total")
}

func TestNewRouterRequiresSecret(t *testing.T) {
	_, err := NewRouter(config.Config{}, Dependencies{})
	assert.Error(t, err)
}

type fakeCounter struct {
	next atomic.Int64
}

func (c *fakeCounter) IncrWithExpire(context.Context, string, time.Duration) (int64, error) {
	return c.next.Load(), nil
}
