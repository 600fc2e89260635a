// internal/notify/store.go
package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "school-notifier/internal/common/errors"
	"school-notifier/internal/common/logger"
	"school-notifier/internal/common/metrics"
	"school-notifier/internal/models"
)

// Syncer is the thin persistence contract backed by the REST API. Every call
// is best effort: the store logs failures and keeps its optimistic state.
type Syncer interface {
	Fetch(ctx context.Context, scopeID string) ([]models.ServerRecord, error)
	MarkRead(ctx context.Context, id, scopeID string) error
	MarkAllRead(ctx context.Context, scopeID string) error
	Delete(ctx context.Context, id, scopeID string) error
}

// Cache is the optional local snapshot store used to keep notifications
// displayable across restarts and offline periods.
type Cache interface {
	SaveSnapshot(ctx context.Context, scopeID string, items []models.Notification) error
	LoadSnapshot(ctx context.Context, scopeID string) ([]models.Notification, error)
}

// Sink receives each newly admitted notification exactly once. Delivery
// failures are isolated per sink and never reach the store's callers.
type Sink interface {
	Name() string
	Deliver(n models.Notification) error
}

const persistTimeout = 10 * time.Second

// Store is the authoritative in-memory notification collection. It is the
// single writer of notification state; every mutation runs to completion
// under the lock, so the dedup/ordering/cap invariants never observe a torn
// intermediate state.
type Store struct {
	mu    sync.Mutex
	items []models.Notification

	maxStored   int
	dedupWindow time.Duration
	scopeID     string

	syncer Syncer
	cache  Cache
	sinks  []Sink
	log    logger.Logger

	// onPersistFailure lets a stricter caller opt into reconciliation
	// (e.g. re-fetch). The default behavior is log-only.
	onPersistFailure func(operation string, err error)
}

func NewStore(maxStored int, dedupWindow time.Duration, syncer Syncer, log logger.Logger) *Store {
	if maxStored <= 0 {
		maxStored = 100
	}
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Second
	}
	return &Store{
		maxStored:   maxStored,
		dedupWindow: dedupWindow,
		syncer:      syncer,
		log:         log.WithFields(map[string]interface{}{"component": "notification-store"}),
	}
}

// SetScope sets the tenant id attached to every persistence call.
func (s *Store) SetScope(scopeID string) {
	s.mu.Lock()
	s.scopeID = scopeID
	s.mu.Unlock()
}

// AttachCache enables the local snapshot cache.
func (s *Store) AttachCache(cache Cache) {
	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
}

// AttachSinks registers presentation sinks fired once per admitted notification.
func (s *Store) AttachSinks(sinks ...Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sinks...)
	s.mu.Unlock()
}

// OnPersistFailure registers a hook invoked after any failed persistence call.
func (s *Store) OnPersistFailure(fn func(operation string, err error)) {
	s.mu.Lock()
	s.onPersistFailure = fn
	s.mu.Unlock()
}

// Admit applies the dedup window against the head of the list, prepends the
// notification, truncates to the cap and fans out to the sinks. Returns false
// when the notification collapsed into an existing one.
func (s *Store) Admit(n models.Notification) bool {
	s.mu.Lock()

	if len(s.items) > 0 {
		head := s.items[0]
		if head.Type == n.Type && head.Message == n.Message {
			delta := n.Timestamp.Sub(head.Timestamp)
			if delta < 0 {
				delta = -delta
			}
			if delta < s.dedupWindow {
				s.mu.Unlock()
				metrics.NotificationsDeduplicated.Inc()
				s.log.Debug("duplicate notification collapsed", map[string]interface{}{
					"type":    n.Type,
					"message": n.Message,
				})
				return false
			}
		}
	}

	s.items = append([]models.Notification{n}, s.items...)
	if len(s.items) > s.maxStored {
		evicted := len(s.items) - s.maxStored
		s.items = s.items[:s.maxStored]
		metrics.NotificationsEvicted.Add(float64(evicted))
	}

	sinks := make([]Sink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.Unlock()

	metrics.NotificationsAdmitted.WithLabelValues(n.Type).Inc()

	for _, sink := range sinks {
		s.deliver(sink, n)
	}

	s.persistSnapshot()
	return true
}

// deliver isolates a single sink: a panic or error in one sink must not block
// the others or the store update.
func (s *Store) deliver(sink Sink, n models.Notification) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
			s.log.Error("sink panicked", map[string]interface{}{
				"sink":  sink.Name(),
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()
	if err := sink.Deliver(n); err != nil {
		metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
		sinkErr := apperrors.NewSinkDeliveryFailedError(sink.Name(), err)
		s.log.Warn("sink delivery failed", map[string]interface{}{
			"sink":  sink.Name(),
			"id":    n.ID,
			"code":  string(sinkErr.Code),
			"error": sinkErr.Details,
		})
	}
}

// MergeHistory unions server-fetched records with whatever arrived live,
// keyed by id (live entries win), re-sorts newest-first and truncates to the
// cap. Safe to call before or after live notifications have arrived.
func (s *Store) MergeHistory(records []models.ServerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.items))
	for _, n := range s.items {
		seen[n.ID] = true
	}

	for _, rec := range records {
		n := NormalizeHistory(rec)
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		s.items = append(s.items, n)
	}

	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Timestamp.After(s.items[j].Timestamp)
	})

	if len(s.items) > s.maxStored {
		s.items = s.items[:s.maxStored]
	}
}

// SyncFromServer fetches persisted history and merges it into the store.
// A fetch failure is logged and returned; the in-memory list is untouched.
func (s *Store) SyncFromServer(ctx context.Context) error {
	s.mu.Lock()
	scope := s.scopeID
	s.mu.Unlock()

	records, err := s.syncer.Fetch(ctx, scope)
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues("fetch").Inc()
		fetchErr := apperrors.NewFetchFailedError(err)
		s.log.Warn("history fetch failed, showing cached notifications", map[string]interface{}{
			"scopeId": scope,
			"error":   fetchErr.Details,
		})
		s.notifyPersistFailure("fetch", fetchErr)
		return fetchErr
	}

	s.MergeHistory(records)
	s.persistSnapshot()
	return nil
}

// MarkAsRead optimistically flips the read flag and asynchronously persists
// it. The local flag is never reverted on persistence failure.
func (s *Store) MarkAsRead(id string) {
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].ID == id {
			if !s.items[i].Read {
				s.items[i].Read = true
				changed = true
			}
			break
		}
	}
	scope := s.scopeID
	s.mu.Unlock()

	if !changed {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.syncer.MarkRead(ctx, id, scope); err != nil {
			metrics.PersistenceFailures.WithLabelValues("mark_read").Inc()
			markErr := apperrors.NewMarkReadFailedError(id, err)
			s.log.Warn("failed to persist read state, local state stands", map[string]interface{}{
				"id":    id,
				"error": markErr.Details,
			})
			s.notifyPersistFailure("mark_read", markErr)
		}
	}()

	s.persistSnapshot()
}

// MarkAllAsRead applies the same optimistic pattern to every notification.
func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			changed = true
		}
	}
	scope := s.scopeID
	s.mu.Unlock()

	if !changed {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.syncer.MarkAllRead(ctx, scope); err != nil {
			metrics.PersistenceFailures.WithLabelValues("mark_all_read").Inc()
			markErr := apperrors.NewMarkReadFailedError("all", err)
			s.log.Warn("failed to persist mark-all-read, local state stands", map[string]interface{}{
				"error": markErr.Details,
			})
			s.notifyPersistFailure("mark_all_read", markErr)
		}
	}()

	s.persistSnapshot()
}

// Remove drops the notification locally, then requests deletion.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			found = true
			break
		}
	}
	scope := s.scopeID
	s.mu.Unlock()

	if !found {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.syncer.Delete(ctx, id, scope); err != nil {
			metrics.PersistenceFailures.WithLabelValues("delete").Inc()
			delErr := apperrors.NewDeleteFailedError(id, err)
			s.log.Warn("failed to persist deletion, local state stands", map[string]interface{}{
				"id":    id,
				"error": delErr.Details,
			})
			s.notifyPersistFailure("delete", delErr)
		}
	}()

	s.persistSnapshot()
}

// ClearAll empties the list locally and requests deletion of each entry.
func (s *Store) ClearAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.items))
	for _, n := range s.items {
		ids = append(ids, n.ID)
	}
	s.items = nil
	scope := s.scopeID
	s.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		for _, id := range ids {
			if err := s.syncer.Delete(ctx, id, scope); err != nil {
				metrics.PersistenceFailures.WithLabelValues("delete").Inc()
				delErr := apperrors.NewDeleteFailedError(id, err)
				s.log.Warn("failed to persist deletion during clear-all", map[string]interface{}{
					"id":    id,
					"error": delErr.Details,
				})
				s.notifyPersistFailure("delete", delErr)
			}
		}
	}()

	s.persistSnapshot()
}

// Clear drops all local state without touching the backend. Used on logout.
// Persistence responses still in flight are ignored by construction: nothing
// rolls back or re-applies them.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// UnreadCount is always derived, never stored.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// Len returns the number of stored notifications.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Notifications returns a copy of the current list, newest first.
func (s *Store) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// ByType returns the notifications with the given type, newest first.
func (s *Store) ByType(notificationType string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.items {
		if n.Type == notificationType {
			out = append(out, n)
		}
	}
	return out
}

// ByPriority returns the notifications with the given priority, newest first.
func (s *Store) ByPriority(priority models.Priority) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.items {
		if n.Priority == priority {
			out = append(out, n)
		}
	}
	return out
}

// LoadFromCache seeds the store from the local snapshot. Cache misses and
// failures are non-fatal.
func (s *Store) LoadFromCache(ctx context.Context) {
	s.mu.Lock()
	cache := s.cache
	scope := s.scopeID
	s.mu.Unlock()

	if cache == nil {
		return
	}

	items, err := cache.LoadSnapshot(ctx, scope)
	if err != nil {
		s.log.Debug("snapshot load failed", map[string]interface{}{
			"scopeId": scope,
			"error":   err.Error(),
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.items))
	for _, n := range s.items {
		seen[n.ID] = true
	}
	for _, n := range items {
		if n.ID == "" || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		s.items = append(s.items, n)
	}

	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Timestamp.After(s.items[j].Timestamp)
	})
	if len(s.items) > s.maxStored {
		s.items = s.items[:s.maxStored]
	}
}

func (s *Store) persistSnapshot() {
	s.mu.Lock()
	cache := s.cache
	scope := s.scopeID
	items := make([]models.Notification, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	if cache == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := cache.SaveSnapshot(ctx, scope, items); err != nil {
			s.log.Debug("snapshot save failed", map[string]interface{}{
				"scopeId": scope,
				"error":   err.Error(),
			})
		}
	}()
}

func (s *Store) notifyPersistFailure(operation string, err error) {
	s.mu.Lock()
	fn := s.onPersistFailure
	s.mu.Unlock()
	if fn != nil {
		fn(operation, err)
	}
}
