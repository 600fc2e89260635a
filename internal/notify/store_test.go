// internal/notify/store_test.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "school-notifier/internal/common/errors"
	"school-notifier/internal/common/logger"
	"school-notifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeSyncer records persistence calls and optionally fails them.
type fakeSyncer struct {
	calls   chan string
	failAll bool
	records []models.ServerRecord
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{calls: make(chan string, 64)}
}

func (f *fakeSyncer) record(op string) error {
	f.calls <- op
	if f.failAll {
		return errors.New("backend unavailable")
	}
	return nil
}

func (f *fakeSyncer) Fetch(ctx context.Context, scopeID string) ([]models.ServerRecord, error) {
	if err := f.record("fetch"); err != nil {
		return nil, err
	}
	return f.records, nil
}

func (f *fakeSyncer) MarkRead(ctx context.Context, id, scopeID string) error {
	return f.record("mark_read:" + id)
}

func (f *fakeSyncer) MarkAllRead(ctx context.Context, scopeID string) error {
	return f.record("mark_all_read")
}

func (f *fakeSyncer) Delete(ctx context.Context, id, scopeID string) error {
	return f.record("delete:" + id)
}

func (f *fakeSyncer) waitForCall(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-f.calls:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for persistence call %q", want)
	}
}

func createTestStore(t *testing.T, syncer Syncer) *Store {
	if syncer == nil {
		syncer = newFakeSyncer()
	}
	return NewStore(100, 5*time.Second, syncer, logger.NewTestLogger(t))
}

func createNotification(id, notificationType, message string, ts time.Time) models.Notification {
	return models.Notification{
		ID:        id,
		Type:      notificationType,
		Title:     "title",
		Message:   message,
		Icon:      "bell",
		Priority:  models.PriorityMedium,
		Timestamp: ts,
	}
}

// ==========================
// Dedup Window Tests
// ==========================

func TestStore_Admit_DedupWindow(t *testing.T) {
	base := time.Now()

	tests := []struct {
		name        string
		first       models.Notification
		second      models.Notification
		wantLen     int
		wantHeadID  string
	}{
		{
			name:       "identical pair within window collapses",
			first:      createNotification("a", "exam_scheduled", "Math exam tomorrow", base),
			second:     createNotification("b", "exam_scheduled", "Math exam tomorrow", base.Add(1*time.Second)),
			wantLen:    1,
			wantHeadID: "a", // the earlier one wins
		},
		{
			name:       "identical pair outside window keeps both",
			first:      createNotification("a", "exam_scheduled", "Math exam tomorrow", base),
			second:     createNotification("b", "exam_scheduled", "Math exam tomorrow", base.Add(6*time.Second)),
			wantLen:    2,
			wantHeadID: "b",
		},
		{
			name:       "same type different message keeps both",
			first:      createNotification("a", "exam_scheduled", "Math exam tomorrow", base),
			second:     createNotification("b", "exam_scheduled", "Physics exam tomorrow", base.Add(1*time.Second)),
			wantLen:    2,
			wantHeadID: "b",
		},
		{
			name:       "same message different type keeps both",
			first:      createNotification("a", "exam_scheduled", "Math exam tomorrow", base),
			second:     createNotification("b", "exam_updated", "Math exam tomorrow", base.Add(1*time.Second)),
			wantLen:    2,
			wantHeadID: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := createTestStore(t, nil)

			require.True(t, store.Admit(tt.first))
			store.Admit(tt.second)

			items := store.Notifications()
			require.Len(t, items, tt.wantLen)
			assert.Equal(t, tt.wantHeadID, items[0].ID)
		})
	}
}

func TestStore_Admit_DuplicateReturnsFalse(t *testing.T) {
	store := createTestStore(t, nil)
	base := time.Now()

	assert.True(t, store.Admit(createNotification("a", "grade", "done", base)))
	assert.False(t, store.Admit(createNotification("b", "grade", "done", base.Add(time.Second))))
	assert.Equal(t, 1, store.Len())
}

// ==========================
// Cap Invariant Tests
// ==========================

func TestStore_Admit_CapHoldsNewest(t *testing.T) {
	store := createTestStore(t, nil)
	base := time.Now()

	for i := 0; i < 150; i++ {
		n := createNotification(
			fmt.Sprintf("n-%d", i),
			"exam_scheduled",
			fmt.Sprintf("message %d", i),
			base.Add(time.Duration(i)*time.Second),
		)
		store.Admit(n)
	}

	items := store.Notifications()
	require.Len(t, items, 100)

	// Newest first, and only the 100 most recent survive.
	assert.Equal(t, "n-149", items[0].ID)
	assert.Equal(t, "n-50", items[99].ID)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].Timestamp.After(items[i-1].Timestamp))
	}
}

// ==========================
// History Merge Tests
// ==========================

func TestStore_MergeHistory_UnionByID(t *testing.T) {
	store := createTestStore(t, nil)
	now := time.Now()

	store.Admit(createNotification("l1", "grade", "graded", now))

	store.MergeHistory([]models.ServerRecord{
		{ID: "h1", Type: "grade", Message: "older", Read: true, CreatedAt: now.Add(-time.Hour).Format(time.RFC3339)},
		{ID: "l1", Type: "grade", Message: "graded", Read: true, CreatedAt: now.Format(time.RFC3339)},
	})

	items := store.Notifications()
	require.Len(t, items, 2)
	assert.Equal(t, "l1", items[0].ID)
	assert.Equal(t, "h1", items[1].ID)

	// The live entry wins the id collision, so its read flag is untouched.
	assert.False(t, items[0].Read)
	assert.Equal(t, 1, store.UnreadCount())
}

func TestStore_MergeHistory_Idempotent(t *testing.T) {
	store := createTestStore(t, nil)
	now := time.Now()

	history := []models.ServerRecord{
		{ID: "h1", Type: "grade", Message: "one", CreatedAt: now.Add(-2 * time.Hour).Format(time.RFC3339)},
		{ID: "h2", Type: "grade", Message: "two", CreatedAt: now.Add(-1 * time.Hour).Format(time.RFC3339)},
	}

	store.MergeHistory(history)
	once := store.Notifications()

	store.MergeHistory(history)
	twice := store.Notifications()

	assert.Equal(t, once, twice)
}

func TestStore_MergeHistory_OrderIndependentOfAdmits(t *testing.T) {
	now := time.Now()
	history := []models.ServerRecord{
		{ID: "h1", Type: "class_created", Message: "class A", CreatedAt: now.Add(-30 * time.Minute).Format(time.RFC3339)},
		{ID: "h2", Type: "term_created", Message: "term 1", CreatedAt: now.Add(-20 * time.Minute).Format(time.RFC3339)},
	}
	live := []models.Notification{
		createNotification("l1", "grade", "graded", now.Add(-10*time.Minute)),
		createNotification("l2", "review_request", "please review", now),
	}

	mergeFirst := createTestStore(t, nil)
	mergeFirst.MergeHistory(history)
	for _, n := range live {
		mergeFirst.Admit(n)
	}
	// A final merge converges the ordering regardless of interleaving.
	mergeFirst.MergeHistory(history)

	admitFirst := createTestStore(t, nil)
	for _, n := range live {
		admitFirst.Admit(n)
	}
	admitFirst.MergeHistory(history)

	assert.Equal(t, admitFirst.Notifications(), mergeFirst.Notifications())
}

// ==========================
// Read State Tests
// ==========================

func TestStore_MarkAsRead_OptimisticAndPersisted(t *testing.T) {
	syncer := newFakeSyncer()
	store := createTestStore(t, syncer)

	store.Admit(createNotification("a", "grade", "done", time.Now()))
	store.MarkAsRead("a")

	assert.True(t, store.Notifications()[0].Read)
	assert.Equal(t, 0, store.UnreadCount())
	syncer.waitForCall(t, "mark_read:a")
}

func TestStore_MarkAsRead_PersistenceFailureKeepsLocalState(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.failAll = true
	store := createTestStore(t, syncer)

	type failure struct {
		operation string
		err       error
	}
	failures := make(chan failure, 1)
	store.OnPersistFailure(func(operation string, err error) {
		failures <- failure{operation, err}
	})

	store.Admit(createNotification("a", "grade", "done", time.Now()))
	store.MarkAsRead("a")

	select {
	case got := <-failures:
		assert.Equal(t, "mark_read", got.operation)
		// The hook receives a typed error so callers can inspect it.
		var stdErr *apperrors.StandardError
		require.ErrorAs(t, got.err, &stdErr)
		assert.Equal(t, apperrors.ErrCodeMarkReadFailed, stdErr.Code)
		assert.True(t, apperrors.IsRetryable(got.err))
	case <-time.After(2 * time.Second):
		t.Fatal("persist failure hook never fired")
	}

	// The optimistic flag stands.
	assert.True(t, store.Notifications()[0].Read)
}

func TestStore_MarkAsRead_Monotonic(t *testing.T) {
	store := createTestStore(t, nil)
	now := time.Now()

	store.Admit(createNotification("a", "grade", "done", now))
	store.MarkAsRead("a")

	// A later history merge carrying read=false for the same id must not
	// flip the flag back.
	store.MergeHistory([]models.ServerRecord{
		{ID: "a", Type: "grade", Message: "done", Read: false, CreatedAt: now.Format(time.RFC3339)},
	})

	require.Equal(t, 1, store.Len())
	assert.True(t, store.Notifications()[0].Read)
}

func TestStore_MarkAllAsRead(t *testing.T) {
	syncer := newFakeSyncer()
	store := createTestStore(t, syncer)
	base := time.Now()

	for i := 0; i < 5; i++ {
		store.Admit(createNotification(fmt.Sprintf("n-%d", i), "grade", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second)))
	}
	require.Equal(t, 5, store.UnreadCount())

	store.MarkAllAsRead()

	assert.Equal(t, 0, store.UnreadCount())
	syncer.waitForCall(t, "mark_all_read")
}

// ==========================
// Removal Tests
// ==========================

func TestStore_Remove(t *testing.T) {
	syncer := newFakeSyncer()
	store := createTestStore(t, syncer)
	base := time.Now()

	store.Admit(createNotification("a", "grade", "one", base))
	store.Admit(createNotification("b", "review_request", "two", base.Add(time.Second)))

	store.Remove("a")

	items := store.Notifications()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)
	syncer.waitForCall(t, "delete:a")
}

func TestStore_Remove_UnknownIDIsNoOp(t *testing.T) {
	syncer := newFakeSyncer()
	store := createTestStore(t, syncer)

	store.Remove("missing")

	assert.Equal(t, 0, store.Len())
	select {
	case op := <-syncer.calls:
		t.Fatalf("unexpected persistence call %q", op)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStore_ClearAll(t *testing.T) {
	syncer := newFakeSyncer()
	store := createTestStore(t, syncer)
	base := time.Now()

	store.Admit(createNotification("a", "grade", "one", base))
	store.Admit(createNotification("b", "grade", "two", base.Add(6*time.Second)))

	store.ClearAll()

	assert.Equal(t, 0, store.Len())
	// Deletions follow stored order, newest first.
	syncer.waitForCall(t, "delete:b")
	syncer.waitForCall(t, "delete:a")
}

func TestStore_Clear_LocalOnly(t *testing.T) {
	syncer := newFakeSyncer()
	store := createTestStore(t, syncer)

	store.Admit(createNotification("a", "grade", "one", time.Now()))
	store.Clear()

	assert.Equal(t, 0, store.Len())
	select {
	case op := <-syncer.calls:
		t.Fatalf("logout clear must not call the backend, got %q", op)
	case <-time.After(100 * time.Millisecond):
	}
}

// ==========================
// Derived State and Filters
// ==========================

func TestStore_UnreadCountConsistency(t *testing.T) {
	store := createTestStore(t, nil)
	base := time.Now()

	for i := 0; i < 10; i++ {
		store.Admit(createNotification(fmt.Sprintf("n-%d", i), "grade", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second)))
	}
	store.MarkAsRead("n-3")
	store.MarkAsRead("n-7")
	store.Remove("n-5")

	unread := 0
	for _, n := range store.Notifications() {
		if !n.Read {
			unread++
		}
	}
	assert.Equal(t, unread, store.UnreadCount())
	assert.Equal(t, 7, store.UnreadCount())
}

func TestStore_Filters(t *testing.T) {
	store := createTestStore(t, nil)
	base := time.Now()

	a := createNotification("a", "grade", "one", base)
	a.Priority = models.PriorityHigh
	b := createNotification("b", "review_request", "two", base.Add(time.Second))
	c := createNotification("c", "grade", "three", base.Add(2*time.Second))

	store.Admit(a)
	store.Admit(b)
	store.Admit(c)

	byType := store.ByType("grade")
	require.Len(t, byType, 2)
	assert.Equal(t, "c", byType[0].ID)
	assert.Equal(t, "a", byType[1].ID)

	byPriority := store.ByPriority(models.PriorityHigh)
	require.Len(t, byPriority, 1)
	assert.Equal(t, "a", byPriority[0].ID)
}

// ==========================
// Sink Fan-out Tests
// ==========================

type recordingSink struct {
	name      string
	delivered []string
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Deliver(n models.Notification) error {
	r.delivered = append(r.delivered, n.ID)
	return nil
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panicking" }

func (panickingSink) Deliver(n models.Notification) error {
	panic("sink exploded")
}

func TestStore_Admit_FansOutOncePerAdmitted(t *testing.T) {
	store := createTestStore(t, nil)
	sink := &recordingSink{name: "recording"}
	store.AttachSinks(sink)
	base := time.Now()

	store.Admit(createNotification("a", "grade", "one", base))
	store.Admit(createNotification("b", "grade", "one", base.Add(time.Second))) // dedup drop
	store.Admit(createNotification("c", "grade", "two", base.Add(2*time.Second)))

	assert.Equal(t, []string{"a", "c"}, sink.delivered)
}

func TestStore_Admit_SinkPanicIsolated(t *testing.T) {
	store := createTestStore(t, nil)
	after := &recordingSink{name: "after"}
	store.AttachSinks(panickingSink{}, after)

	require.NotPanics(t, func() {
		store.Admit(createNotification("a", "grade", "one", time.Now()))
	})
	assert.Equal(t, []string{"a"}, after.delivered)
	assert.Equal(t, 1, store.Len())
}

func TestStore_MergeHistory_DoesNotFanOut(t *testing.T) {
	store := createTestStore(t, nil)
	sink := &recordingSink{name: "recording"}
	store.AttachSinks(sink)

	store.MergeHistory([]models.ServerRecord{
		{ID: "h1", Type: "grade", Message: "old", CreatedAt: time.Now().Format(time.RFC3339)},
	})

	assert.Empty(t, sink.delivered)
	assert.Equal(t, 1, store.Len())
}

// ==========================
// Server Sync Tests
// ==========================

func TestStore_SyncFromServer(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.records = []models.ServerRecord{
		{ID: "h1", Type: "grade", Message: "old", Read: true, CreatedAt: time.Now().Add(-time.Hour).Format(time.RFC3339)},
	}
	store := createTestStore(t, syncer)
	store.SetScope("school-1")

	store.Admit(createNotification("l1", "grade", "new", time.Now()))

	require.NoError(t, store.SyncFromServer(context.Background()))
	syncer.waitForCall(t, "fetch")

	require.Equal(t, 2, store.Len())
	assert.Equal(t, 1, store.UnreadCount())
}

func TestStore_SyncFromServer_FailureKeepsLocalList(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.failAll = true
	store := createTestStore(t, syncer)

	store.Admit(createNotification("l1", "grade", "new", time.Now()))

	err := store.SyncFromServer(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, store.Len())

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeFetchFailed, stdErr.Code)
}
