package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"social_automation/internal/models"
	"social_automation/internal/ratelimit"
)

type fakeNotificationService struct {
	listUserID   int64
	listPage     int
	listPageSize int
	listUnread   bool

	markedRead    []int64
	markedAllRead bool

	notifications []*models.Notification
	unreadCount   int64
	feed          []json.RawMessage
}

func (f *fakeNotificationService) List(ctx context.Context, userID int64, page, pageSize int, unreadOnly bool) ([]*models.Notification, *models.Pagination, error) {
	f.listUserID = userID
	f.listPage = page
	f.listPageSize = pageSize
	f.listUnread = unreadOnly
	return f.notifications, &models.Pagination{
		Total:    len(f.notifications),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (f *fakeNotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return f.unreadCount, nil
}

func (f *fakeNotificationService) MarkRead(ctx context.Context, userID int64, ids []int64) error {
	f.markedRead = ids
	return nil
}

func (f *fakeNotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	f.markedAllRead = true
	return nil
}

func (f *fakeNotificationService) RealtimeFeed(ctx context.Context, userID int64) ([]json.RawMessage, error) {
	return f.feed, nil
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(ctx context.Context, rule ratelimit.Rule, origin, identity, operation string) bool {
	return true
}

type denyAllLimiter struct {
	rule      ratelimit.Rule
	origin    string
	identity  string
	operation string
}

func (d *denyAllLimiter) Allow(ctx context.Context, rule ratelimit.Rule, origin, identity, operation string) bool {
	d.rule = rule
	d.origin = origin
	d.identity = identity
	d.operation = operation
	return false
}

func newTestRouter(svc notificationService, limiter requestLimiter) *chi.Mux {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	r := chi.NewRouter()
	RegisterNotificationRoutes(r, NewNotificationHandler(svc, logger), limiter)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:4242"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListPassesQueryParams(t *testing.T) {
	svc := &fakeNotificationService{
		notifications: []*models.Notification{
			{ID: 1, UserID: 7, Type: "post_published", Title: "Post published", CreatedAt: time.Now()},
		},
	}
	router := newTestRouter(svc, allowAllLimiter{})

	rec := doRequest(t, router, http.MethodGet, "/api/users/7/notifications?page=3&page_size=5&unread_only=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(7), svc.listUserID)
	require.Equal(t, 3, svc.listPage)
	require.Equal(t, 5, svc.listPageSize)
	require.True(t, svc.listUnread)

	var body struct {
		Notifications []*models.Notification `json:"notifications"`
		Pagination    *models.Pagination     `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Notifications, 1)
	require.Equal(t, 3, body.Pagination.Page)
}

func TestListBadParamsFallBackToDefaults(t *testing.T) {
	svc := &fakeNotificationService{}
	router := newTestRouter(svc, allowAllLimiter{})

	rec := doRequest(t, router, http.MethodGet, "/api/users/7/notifications?page=-1&page_size=9999", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, svc.listPage)
	require.Equal(t, 20, svc.listPageSize)
}

func TestInvalidUserIDRejected(t *testing.T) {
	router := newTestRouter(&fakeNotificationService{}, allowAllLimiter{})

	for _, target := range []string{
		"/api/users/abc/notifications",
		"/api/users/0/notifications/unread_count",
		"/api/users/-3/notifications/feed",
	} {
		rec := doRequest(t, router, http.MethodGet, target, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestUnreadCount(t *testing.T) {
	svc := &fakeNotificationService{unreadCount: 12}
	router := newTestRouter(svc, allowAllLimiter{})

	rec := doRequest(t, router, http.MethodGet, "/api/users/7/notifications/unread_count", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, int64(12), body["unread_count"])
}

func TestMarkReadRequiresIDs(t *testing.T) {
	svc := &fakeNotificationService{}
	router := newTestRouter(svc, allowAllLimiter{})

	rec := doRequest(t, router, http.MethodPost, "/api/users/7/notifications/read", `{"ids": []}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/users/7/notifications/read", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/users/7/notifications/read", `{"ids": [1, 2]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []int64{1, 2}, svc.markedRead)
}

func TestMarkAllRead(t *testing.T) {
	svc := &fakeNotificationService{}
	router := newTestRouter(svc, allowAllLimiter{})

	rec := doRequest(t, router, http.MethodPost, "/api/users/7/notifications/read_all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, svc.markedAllRead)
}

func TestRealtimeFeedEmptyIsJSONArray(t *testing.T) {
	router := newTestRouter(&fakeNotificationService{}, allowAllLimiter{})

	rec := doRequest(t, router, http.MethodGet, "/api/users/7/notifications/feed", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"feed":[]`)
}

func TestRateLimitedRequestGets429(t *testing.T) {
	limiter := &denyAllLimiter{}
	router := newTestRouter(&fakeNotificationService{}, limiter)

	rec := doRequest(t, router, http.MethodGet, "/api/users/7/notifications", "")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, ratelimit.APIRead, limiter.rule)
	require.Equal(t, "192.0.2.1", limiter.origin)
	require.Equal(t, "7", limiter.identity)
}
