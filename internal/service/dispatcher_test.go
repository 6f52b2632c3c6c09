package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"social_automation/internal/models"
	"social_automation/internal/platform"
	"social_automation/internal/ratelimit"
	"social_automation/internal/repository"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakePostStore struct {
	mu    sync.Mutex
	posts map[int64]*models.ScheduledPost
}

func newFakePostStore(posts ...*models.ScheduledPost) *fakePostStore {
	m := make(map[int64]*models.ScheduledPost, len(posts))
	for _, p := range posts {
		m[p.ID] = p
	}
	return &fakePostStore{posts: m}
}

func (f *fakePostStore) GetDuePosts(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var due []*models.ScheduledPost
	for _, p := range f.posts {
		if p.Status == repository.PostStatusPending && !p.ScheduledTime.After(now) {
			cp := *p
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledTime.Equal(due[j].ScheduledTime) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakePostStore) MarkPublished(ctx context.Context, id int64, platformPostID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[id]
	if !ok || p.Status != repository.PostStatusPending {
		return repository.ErrNotFound
	}
	now := time.Now()
	p.Status = repository.PostStatusPublished
	p.PostedAt = &now
	p.PlatformPostID = &platformPostID
	return nil
}

func (f *fakePostStore) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[id]
	if !ok || p.Status != repository.PostStatusPending {
		return repository.ErrNotFound
	}
	p.Status = repository.PostStatusFailed
	p.LastError = &errorMsg
	return nil
}

func (f *fakePostStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[string]int64)
	for _, p := range f.posts {
		counts[p.Status]++
	}
	return counts, nil
}

type fakeAccountStore struct {
	accounts map[int64]*models.Account
}

func (f *fakeAccountStore) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccountStore) ListActive(ctx context.Context) ([]*models.Account, error) {
	var res []*models.Account
	for _, a := range f.accounts {
		if a.IsActive {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

type fakeAdapter struct {
	mu        sync.Mutex
	published []platform.PublishRequest
	fetched   []int64

	publishFn func(req platform.PublishRequest) (*platform.PublishResult, error)
	fetchFn   func(account *models.Account) ([]platform.Metric, error)
}

func (f *fakeAdapter) Publish(ctx context.Context, req platform.PublishRequest) (*platform.PublishResult, error) {
	f.mu.Lock()
	f.published = append(f.published, req)
	f.mu.Unlock()

	if f.publishFn != nil {
		return f.publishFn(req)
	}
	return &platform.PublishResult{PlatformPostID: "ext-1"}, nil
}

func (f *fakeAdapter) FetchMetrics(ctx context.Context, account *models.Account) ([]platform.Metric, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, account.ID)
	f.mu.Unlock()

	if f.fetchFn != nil {
		return f.fetchFn(account)
	}
	return nil, nil
}

func (f *fakeAdapter) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeRegistry struct {
	adapters map[string]platform.Adapter
}

func (f *fakeRegistry) Get(name string) (platform.Adapter, error) {
	a, ok := f.adapters[name]
	if !ok {
		return nil, platform.ErrUnsupportedPlatform
	}
	return a, nil
}

type stubLimiter struct {
	allow bool
}

func (s *stubLimiter) Allow(ctx context.Context, rule ratelimit.Rule, origin, identity, operation string) bool {
	return s.allow
}

type recordedNotification struct {
	UserID int64
	Type   string
	Title  string
}

type fakeNotifier struct {
	mu      sync.Mutex
	created []recordedNotification
}

func (f *fakeNotifier) Create(ctx context.Context, userID int64, typ, title, message string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, recordedNotification{UserID: userID, Type: typ, Title: title})
	return nil
}

func (f *fakeNotifier) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.created {
		out = append(out, n.Type)
	}
	sort.Strings(out)
	return out
}

func activeAccount(id, userID int64) *models.Account {
	return &models.Account{
		ID:          id,
		UserID:      userID,
		Platform:    "twitter",
		Handle:      "@test",
		Credentials: "token",
		IsActive:    true,
	}
}

func pendingPost(id, accountID int64, due time.Time, content string) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:            id,
		AccountID:     accountID,
		Content:       content,
		ScheduledTime: due,
		Status:        repository.PostStatusPending,
	}
}

func TestRunOnceMixedOutcome(t *testing.T) {
	due := time.Now().Add(-time.Minute)
	posts := newFakePostStore(
		pendingPost(1, 10, due, "good"),
		pendingPost(2, 10, due, "bad"),
	)
	accounts := &fakeAccountStore{accounts: map[int64]*models.Account{10: activeAccount(10, 100)}}
	adapter := &fakeAdapter{
		publishFn: func(req platform.PublishRequest) (*platform.PublishResult, error) {
			if req.Content == "bad" {
				return nil, errors.New("platform rejected media")
			}
			return &platform.PublishResult{PlatformPostID: "ext-42"}, nil
		},
	}
	notifier := &fakeNotifier{}

	d := NewDispatcher(posts, accounts,
		&fakeRegistry{adapters: map[string]platform.Adapter{"twitter": adapter}},
		&stubLimiter{allow: true}, notifier, nil, testLogger())

	require.NoError(t, d.RunOnce(context.Background()))

	published := posts.posts[1]
	require.Equal(t, repository.PostStatusPublished, published.Status)
	require.NotNil(t, published.PostedAt)
	require.NotNil(t, published.PlatformPostID)
	require.Equal(t, "ext-42", *published.PlatformPostID)

	failed := posts.posts[2]
	require.Equal(t, repository.PostStatusFailed, failed.Status)
	require.NotNil(t, failed.LastError)
	require.NotEmpty(t, *failed.LastError)

	require.Equal(t, []string{"post_failed", "post_published"}, notifier.types())
}

func TestRunOnceDoesNotReselectTerminalPosts(t *testing.T) {
	posts := newFakePostStore(pendingPost(1, 10, time.Now().Add(-time.Minute), "once"))
	accounts := &fakeAccountStore{accounts: map[int64]*models.Account{10: activeAccount(10, 100)}}
	adapter := &fakeAdapter{}

	d := NewDispatcher(posts, accounts,
		&fakeRegistry{adapters: map[string]platform.Adapter{"twitter": adapter}},
		&stubLimiter{allow: true}, &fakeNotifier{}, nil, testLogger())

	require.NoError(t, d.RunOnce(context.Background()))
	require.NoError(t, d.RunOnce(context.Background()))

	require.Equal(t, 1, adapter.publishCount(), "a published post must never be dispatched twice")
}

func TestRunOnceRateLimitedPostStaysPending(t *testing.T) {
	posts := newFakePostStore(pendingPost(1, 10, time.Now().Add(-time.Minute), "later"))
	accounts := &fakeAccountStore{accounts: map[int64]*models.Account{10: activeAccount(10, 100)}}
	adapter := &fakeAdapter{}
	notifier := &fakeNotifier{}

	d := NewDispatcher(posts, accounts,
		&fakeRegistry{adapters: map[string]platform.Adapter{"twitter": adapter}},
		&stubLimiter{allow: false}, notifier, nil, testLogger())

	require.NoError(t, d.RunOnce(context.Background()))

	require.Equal(t, repository.PostStatusPending, posts.posts[1].Status)
	require.Zero(t, adapter.publishCount())
	require.Empty(t, notifier.created)
}

func TestRunOnceMissingCredentialsFailsPost(t *testing.T) {
	account := activeAccount(10, 100)
	account.Credentials = ""

	posts := newFakePostStore(pendingPost(1, 10, time.Now().Add(-time.Minute), "x"))
	accounts := &fakeAccountStore{accounts: map[int64]*models.Account{10: account}}
	adapter := &fakeAdapter{}
	notifier := &fakeNotifier{}

	d := NewDispatcher(posts, accounts,
		&fakeRegistry{adapters: map[string]platform.Adapter{"twitter": adapter}},
		&stubLimiter{allow: true}, notifier, nil, testLogger())

	require.NoError(t, d.RunOnce(context.Background()))

	p := posts.posts[1]
	require.Equal(t, repository.PostStatusFailed, p.Status)
	require.NotNil(t, p.LastError)
	require.True(t, strings.Contains(*p.LastError, "credentials"))
	require.Zero(t, adapter.publishCount())
	require.Equal(t, []string{"post_failed"}, notifier.types())
}

func TestRunOnceMissingAccountFailsPostWithoutNotification(t *testing.T) {
	posts := newFakePostStore(pendingPost(1, 99, time.Now().Add(-time.Minute), "orphan"))
	accounts := &fakeAccountStore{accounts: map[int64]*models.Account{}}
	notifier := &fakeNotifier{}

	d := NewDispatcher(posts, accounts,
		&fakeRegistry{adapters: map[string]platform.Adapter{}},
		&stubLimiter{allow: true}, notifier, nil, testLogger())

	require.NoError(t, d.RunOnce(context.Background()))

	require.Equal(t, repository.PostStatusFailed, posts.posts[1].Status)
	require.Empty(t, notifier.created, "no user to notify when the account row is gone")
}

func TestRunOnceFutureAndCancelledPostsIgnored(t *testing.T) {
	future := pendingPost(1, 10, time.Now().Add(time.Hour), "future")
	cancelled := pendingPost(2, 10, time.Now().Add(-time.Hour), "cancelled")
	cancelled.Status = repository.PostStatusCancelled

	posts := newFakePostStore(future, cancelled)
	accounts := &fakeAccountStore{accounts: map[int64]*models.Account{10: activeAccount(10, 100)}}
	adapter := &fakeAdapter{}

	d := NewDispatcher(posts, accounts,
		&fakeRegistry{adapters: map[string]platform.Adapter{"twitter": adapter}},
		&stubLimiter{allow: true}, &fakeNotifier{}, nil, testLogger())

	require.NoError(t, d.RunOnce(context.Background()))

	require.Zero(t, adapter.publishCount())
	require.Equal(t, repository.PostStatusPending, posts.posts[1].Status)
	require.Equal(t, repository.PostStatusCancelled, posts.posts[2].Status)
}

func TestRunOnceProcessesOldestFirst(t *testing.T) {
	now := time.Now()
	posts := newFakePostStore(
		pendingPost(1, 10, now.Add(-time.Minute), "newer"),
		pendingPost(2, 10, now.Add(-time.Hour), "oldest"),
		pendingPost(3, 10, now.Add(-30*time.Minute), "middle"),
	)
	accounts := &fakeAccountStore{accounts: map[int64]*models.Account{10: activeAccount(10, 100)}}
	adapter := &fakeAdapter{}

	d := NewDispatcher(posts, accounts,
		&fakeRegistry{adapters: map[string]platform.Adapter{"twitter": adapter}},
		&stubLimiter{allow: true}, &fakeNotifier{}, nil, testLogger())

	require.NoError(t, d.RunOnce(context.Background()))

	var order []string
	for _, req := range adapter.published {
		order = append(order, req.Content)
	}
	require.Equal(t, []string{"oldest", "middle", "newer"}, order)
}

func TestRunOnceClaimFailureAbortsTick(t *testing.T) {
	d := NewDispatcher(&failingPostStore{}, &fakeAccountStore{},
		&fakeRegistry{}, &stubLimiter{allow: true}, &fakeNotifier{}, nil, testLogger())

	err := d.RunOnce(context.Background())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "get due posts"))
}

type failingPostStore struct{}

func (f *failingPostStore) GetDuePosts(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	return nil, fmt.Errorf("db down")
}
func (f *failingPostStore) MarkPublished(ctx context.Context, id int64, platformPostID string) error {
	return nil
}
func (f *failingPostStore) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	return nil
}
func (f *failingPostStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return nil, nil
}
