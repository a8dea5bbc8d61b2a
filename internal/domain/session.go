package domain

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// SessionState is the lifecycle state of a query session for its current
// (filter-set, sort-spec) key.
type SessionState int

const (
	StateIdle SessionState = iota
	StateLoading
	StateReady
	StateLoadingMore
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLoadingMore:
		return "loading_more"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionView is an immutable snapshot of a session for rendering.
type SessionView struct {
	State      SessionState
	Items      []Tender
	Err        error
	Total      int
	TotalKnown bool
	HasMore    bool
	Filters    FilterSet
	Sort       SortSpec
}

// Session owns the accumulated page sequence for one active query key and
// drives the Idle/Loading/Ready/LoadingMore/Failed state machine. State is
// explicit and passed in, never ambient: each UI surface holds its own
// session.
//
// Exactly one request per key is in flight at a time. Changing the key
// invalidates all fetched pages and bumps a generation counter; a response
// for an obsolete generation is discarded on arrival, never merged.
// Load-more requests for the same key are strictly sequential.
type Session struct {
	svc        *QueryService
	logger     *slog.Logger
	pageSize   int
	staleAfter time.Duration
	onChange   func(SessionView)

	mu          sync.Mutex
	gen         uint64
	state       SessionState
	filters     FilterSet
	sort        SortSpec
	items       []Tender
	nextCursor  string
	total       int
	totalKnown  bool
	err         error
	failedCursor string
	loadedAt    time.Time
	inflight    bool
}

// NewSession creates an idle session. staleAfter is the window within which
// a repeated query for an unchanged key serves the accumulated result
// without refetching; zero disables the window.
func NewSession(svc *QueryService, logger *slog.Logger, pageSize int, staleAfter time.Duration) *Session {
	return &Session{
		svc:        svc,
		logger:     logger,
		pageSize:   pageSize,
		staleAfter: staleAfter,
		state:      StateIdle,
		sort:       DefaultSort(),
	}
}

// SetOnChange registers a callback invoked on every state change with a
// fresh snapshot. Changes are delivered in order; the callback runs with
// the session lock held and must not call back into the session.
func (s *Session) SetOnChange(fn func(SessionView)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetQuery activates a (filter-set, sort-spec) key. A changed key discards
// the accumulated pages and any in-flight request and starts loading the
// first page. An unchanged key is a no-op while loading, while failed
// (Retry is explicit) or while the last result is still fresh.
func (s *Session) SetQuery(ctx context.Context, filters FilterSet, sortSpec SortSpec) {
	filters = filters.Normalized()
	if !sortSpec.Valid() {
		sortSpec = DefaultSort()
	}

	s.mu.Lock()
	sameKey := s.state != StateIdle && s.filters.Equal(filters) && s.sort == sortSpec
	if sameKey {
		refresh := s.state == StateReady &&
			(s.staleAfter == 0 || time.Since(s.loadedAt) >= s.staleAfter)
		if !refresh {
			s.mu.Unlock()
			return
		}
	}

	s.gen++
	s.filters = filters
	s.sort = sortSpec
	s.items = nil
	s.nextCursor = ""
	s.total = 0
	s.totalKnown = false
	s.err = nil
	s.failedCursor = ""
	s.state = StateLoading
	s.startLocked(ctx, "")
	s.notifyLocked()
	s.mu.Unlock()
}

// LoadMore requests the next page for the current key. It is a no-op unless
// the session is Ready with a continuation cursor and no request for this
// key is outstanding; Ready without a cursor is terminal for the key.
func (s *Session) LoadMore(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateReady || s.nextCursor == "" || s.inflight {
		s.mu.Unlock()
		return
	}
	s.state = StateLoadingMore
	s.startLocked(ctx, s.nextCursor)
	s.notifyLocked()
	s.mu.Unlock()
}

// Retry re-issues the failed request for the current key: the first page
// after a failed initial load, or the failed continuation page with the
// already-loaded items kept.
func (s *Session) Retry(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateFailed || s.inflight {
		s.mu.Unlock()
		return
	}
	cursor := s.failedCursor
	s.err = nil
	if cursor == "" {
		s.state = StateLoading
	} else {
		s.state = StateLoadingMore
	}
	s.startLocked(ctx, cursor)
	s.notifyLocked()
	s.mu.Unlock()
}

// Snapshot returns the current view.
func (s *Session) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) startLocked(ctx context.Context, cursor string) {
	s.inflight = true
	req := PageRequest{
		Filters:   s.filters,
		Sort:      s.sort,
		Cursor:    cursor,
		PageSize:  s.pageSize,
		WithTotal: cursor == "",
	}
	gen := s.gen
	go func() {
		page, err := s.svc.FetchPage(ctx, req)
		s.apply(ctx, gen, cursor, page, err)
	}()
}

func (s *Session) apply(ctx context.Context, gen uint64, cursor string, page Page, err error) {
	s.mu.Lock()
	if gen != s.gen {
		// Stale response for an invalidated key: discard on arrival.
		s.logger.Debug("discarding stale page response", "generation", gen)
		s.mu.Unlock()
		return
	}
	s.inflight = false

	switch {
	case err != nil && errors.Is(err, ErrInvalidCursor):
		// Must not happen while key invalidation holds; restart pagination
		// from the first page for this request.
		s.logger.Warn("invalid cursor, restarting pagination", "error", err)
		s.items = nil
		s.nextCursor = ""
		s.state = StateLoading
		s.startLocked(ctx, "")

	case err != nil:
		s.err = err
		s.failedCursor = cursor
		s.state = StateFailed

	default:
		if cursor == "" {
			s.items = page.Items
		} else {
			s.items = append(s.items, page.Items...)
		}
		s.nextCursor = page.NextCursor
		if page.TotalKnown {
			s.total = page.Total
			s.totalKnown = true
		}
		s.err = nil
		s.failedCursor = ""
		s.loadedAt = time.Now()
		s.state = StateReady
	}

	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Session) viewLocked() SessionView {
	items := make([]Tender, len(s.items))
	copy(items, s.items)
	return SessionView{
		State:      s.state,
		Items:      items,
		Err:        s.err,
		Total:      s.total,
		TotalKnown: s.totalKnown,
		HasMore:    s.nextCursor != "",
		Filters:    s.filters,
		Sort:       s.sort,
	}
}

func (s *Session) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.viewLocked())
	}
}
