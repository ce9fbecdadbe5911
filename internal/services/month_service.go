package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finance/internal/amqp"
	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/storage"
)

// AlreadyExists is returned as CopiedFrom when copy-from-previous finds the
// target month already stored.
const AlreadyExists = "already-exists"

// MonthStore is the persistence the facade depends on.
type MonthStore interface {
	List(ctx context.Context, userID int64) ([]storage.MonthSummary, error)
	Get(ctx context.Context, userID int64, year, month int) (*storage.MonthRecord, error)
	Upsert(ctx context.Context, userID int64, year, month int, doc core.Document) (storage.UpsertResult, error)
	CopyFromPrevious(ctx context.Context, userID int64, year, month int) (storage.CopyResult, error)
	Delete(ctx context.Context, userID int64, year, month int) (bool, error)
}

// EventPublisher announces month changes. Optional.
type EventPublisher interface {
	PublishMonthEvent(ctx context.Context, key string, year, month int, action amqp.MonthAction) error
}

var _ MonthStore = (*storage.MonthRepository)(nil)
var _ EventPublisher = (*amqp.Client)(nil)

type (
	MonthRef struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}

	UpsertRequest struct {
		Year  int           `json:"year"`
		Month int           `json:"month"`
		Data  core.Document `json:"data"`
	}

	MonthListItem struct {
		ID         int64     `json:"id"`
		Year       int       `json:"year"`
		Month      int       `json:"month"`
		UpdatedAt  time.Time `json:"updatedAt"`
		CopiedFrom *string   `json:"copiedFrom"`
	}

	MonthView struct {
		ID         int64         `json:"id"`
		Year       int           `json:"year"`
		Month      int           `json:"month"`
		Data       core.Document `json:"data"`
		UpdatedAt  time.Time     `json:"updatedAt"`
		CopiedFrom *string       `json:"copiedFrom"`
	}

	UpsertResponse struct {
		ID  int64  `json:"id"`
		Key string `json:"key"`
	}

	CopyResponse struct {
		ID         int64   `json:"id"`
		Key        string  `json:"key"`
		CopiedFrom *string `json:"copiedFrom"`
	}

	DeleteResponse struct {
		Success bool `json:"success"`
	}
)

// Created reports whether the copy inserted a new month.
func (r CopyResponse) Created() bool {
	return r.CopiedFrom == nil || *r.CopiedFrom != AlreadyExists
}

// MonthService is the request/response boundary over the month repository.
// All operations act on the local user.
type MonthService struct {
	store     MonthStore
	publisher EventPublisher
	views     cache.Cache[MonthView]
	userID    int64

	// gens counts writes per month key. A read caches its view only when no
	// write landed between its store read and the cache fill.
	mu   sync.Mutex
	gens map[string]uint64
}

type Option func(*MonthService)

// WithPublisher publishes a month event after every successful write.
func WithPublisher(p EventPublisher) Option {
	return func(s *MonthService) { s.publisher = p }
}

// WithCache caches MonthsGet views by month key.
func WithCache(c cache.Cache[MonthView]) Option {
	return func(s *MonthService) { s.views = c }
}

func NewMonthService(store MonthStore, opts ...Option) *MonthService {
	s := &MonthService{store: store, userID: storage.LocalUserID, gens: make(map[string]uint64)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MonthService) MonthsList(ctx context.Context) ([]MonthListItem, error) {
	months, err := s.store.List(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}

	items := make([]MonthListItem, 0, len(months))
	for _, m := range months {
		items = append(items, MonthListItem{
			ID:         m.ID,
			Year:       m.Year,
			Month:      m.Month,
			UpdatedAt:  m.UpdatedAt,
			CopiedFrom: m.CopiedFrom,
		})
	}
	return items, nil
}

// MonthsGet returns nil when the month is not stored.
func (s *MonthService) MonthsGet(ctx context.Context, ref MonthRef) (*MonthView, error) {
	key := core.MonthKey(ref.Year, ref.Month)
	if s.views != nil {
		if v, ok := s.views.Get(key); ok {
			v.Data = v.Data.Clone()
			return &v, nil
		}
	}

	gen := s.generation(key)
	rec, err := s.store.Get(ctx, s.userID, ref.Year, ref.Month)
	if err != nil {
		return nil, fmt.Errorf("get month %s: %w", key, err)
	}
	if rec == nil {
		return nil, nil
	}

	view := MonthView{
		ID:         rec.ID,
		Year:       rec.Year,
		Month:      rec.Month,
		Data:       rec.Document,
		UpdatedAt:  rec.UpdatedAt,
		CopiedFrom: rec.CopiedFrom,
	}
	// Recovered documents are not cached so a repaired row shows up at once.
	if s.views != nil && rec.Outcome == storage.ReadOK {
		cached := view
		cached.Data = view.Data.Clone()
		s.fill(key, gen, cached)
	}
	return &view, nil
}

func (s *MonthService) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key]
}

func (s *MonthService) fill(key string, gen uint64, view MonthView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[key] != gen {
		return
	}
	s.views.Set(key, view)
}

func (s *MonthService) invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[key]++
	s.views.Delete(key)
}

func (s *MonthService) MonthsUpsert(ctx context.Context, req UpsertRequest) (UpsertResponse, error) {
	res, err := s.store.Upsert(ctx, s.userID, req.Year, req.Month, req.Data)
	if err != nil {
		return UpsertResponse{}, err
	}
	s.afterWrite(ctx, req.Year, req.Month, amqp.ActionUpserted)
	return UpsertResponse{ID: res.ID, Key: res.Key}, nil
}

func (s *MonthService) MonthsCopyFromPrevious(ctx context.Context, ref MonthRef) (CopyResponse, error) {
	res, err := s.store.CopyFromPrevious(ctx, s.userID, ref.Year, ref.Month)
	if err != nil {
		return CopyResponse{}, err
	}

	resp := CopyResponse{ID: res.ID, Key: res.Key}
	switch res.Outcome {
	case storage.CopyAlreadyExists:
		sentinel := AlreadyExists
		resp.CopiedFrom = &sentinel
		return resp, nil
	case storage.CopyCreatedFromPrevious:
		source := res.Source
		resp.CopiedFrom = &source
	}

	s.afterWrite(ctx, ref.Year, ref.Month, amqp.ActionCopied)
	return resp, nil
}

func (s *MonthService) MonthsDelete(ctx context.Context, ref MonthRef) (DeleteResponse, error) {
	deleted, err := s.store.Delete(ctx, s.userID, ref.Year, ref.Month)
	if err != nil {
		return DeleteResponse{}, err
	}
	if deleted {
		s.afterWrite(ctx, ref.Year, ref.Month, amqp.ActionDeleted)
	}
	return DeleteResponse{Success: deleted}, nil
}

// MonthsSummary returns the breakdown of a stored month, nil when absent.
func (s *MonthService) MonthsSummary(ctx context.Context, ref MonthRef) (*core.Breakdown, error) {
	view, err := s.MonthsGet(ctx, ref)
	if err != nil || view == nil {
		return nil, err
	}
	b := core.Summarize(view.Data)
	return &b, nil
}

func (s *MonthService) afterWrite(ctx context.Context, year, month int, action amqp.MonthAction) {
	key := core.MonthKey(year, month)
	if s.views != nil {
		s.invalidate(key)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMonthEvent(ctx, key, year, month, action); err != nil {
		// The write already succeeded locally.
		slog.ErrorContext(ctx, "Failed to publish month event",
			"key", key,
			"action", action,
			"error", err)
	}
}
