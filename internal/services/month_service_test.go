package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finance/internal/amqp"
	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/storage"
)

type publishedEvent struct {
	key    string
	action amqp.MonthAction
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishMonthEvent(_ context.Context, key string, _, _ int, action amqp.MonthAction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: key, action: action})
	return p.err
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

// countingStore counts Get calls on top of a real repository.
type countingStore struct {
	MonthStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, userID int64, year, month int) (*storage.MonthRecord, error) {
	s.gets++
	return s.MonthStore.Get(ctx, userID, year, month)
}

// interleavingStore runs afterGet once, right after the first Get read the
// repository and before the caller sees the record.
type interleavingStore struct {
	MonthStore
	once     sync.Once
	afterGet func()
}

func (s *interleavingStore) Get(ctx context.Context, userID int64, year, month int) (*storage.MonthRecord, error) {
	rec, err := s.MonthStore.Get(ctx, userID, year, month)
	s.once.Do(s.afterGet)
	return rec, err
}

func newTestStore(t *testing.T) *storage.MonthRepository {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "finance.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return storage.NewMonthRepository(db)
}

func assetsDocument(totals ...float64) core.Document {
	doc := core.Document{}
	for i, total := range totals {
		doc.Assets = append(doc.Assets, core.Asset{
			ID:          core.NewText(string(rune('a' + i))),
			Name:        core.NewText("asset"),
			Type:        core.NewText("cash"),
			Institution: core.NewText("Bank"),
			Total:       core.Amount(total),
		})
	}
	return doc
}

func TestMonthsGetMissing(t *testing.T) {
	svc := NewMonthService(newTestStore(t))

	view, err := svc.MonthsGet(context.Background(), MonthRef{Year: 2024, Month: 5})
	if err != nil {
		t.Fatalf("MonthsGet: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view, got %+v", view)
	}
}

func TestMonthsUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	svc := NewMonthService(newTestStore(t))

	first, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: 2024, Month: 5, Data: assetsDocument(100, 50)})
	if err != nil {
		t.Fatalf("MonthsUpsert: %v", err)
	}
	if first.Key != "2024-05" {
		t.Fatalf("key = %q", first.Key)
	}

	second, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: 2024, Month: 5, Data: assetsDocument(100, 50)})
	if err != nil {
		t.Fatalf("second MonthsUpsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert changed id: %d -> %d", first.ID, second.ID)
	}

	view, err := svc.MonthsGet(ctx, MonthRef{Year: 2024, Month: 5})
	if err != nil || view == nil {
		t.Fatalf("MonthsGet: %v, %v", view, err)
	}
	if view.Data.Totals.NetWorth != 150 {
		t.Fatalf("net worth = %v, want 150", view.Data.Totals.NetWorth)
	}
	if view.Data.Month != "2024-05" || view.Year != 2024 || view.Month != 5 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestMonthsUpsertInvalidMonth(t *testing.T) {
	svc := NewMonthService(newTestStore(t))

	_, err := svc.MonthsUpsert(context.Background(), UpsertRequest{Year: 2024, Month: 13})
	if !errors.Is(err, storage.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestMonthsCopyFromPrevious(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewMonthService(newTestStore(t), WithPublisher(pub))

	if _, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: 2024, Month: 4, Data: assetsDocument(100)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, err := svc.MonthsCopyFromPrevious(ctx, MonthRef{Year: 2024, Month: 5})
	if err != nil {
		t.Fatalf("MonthsCopyFromPrevious: %v", err)
	}
	if resp.CopiedFrom == nil || *resp.CopiedFrom != "2024-04" {
		t.Fatalf("copiedFrom = %v, want 2024-04", resp.CopiedFrom)
	}
	if !resp.Created() {
		t.Fatalf("copy should report creation")
	}

	view, err := svc.MonthsGet(ctx, MonthRef{Year: 2024, Month: 5})
	if err != nil || view == nil {
		t.Fatalf("MonthsGet: %v, %v", view, err)
	}
	if view.Data.Month != "2024-05" {
		t.Fatalf("data.month = %q", view.Data.Month)
	}
	if view.Data.Meta.CopiedFrom == nil || view.Data.Meta.CopiedFrom.String() != "2024-04" {
		t.Fatalf("meta.copiedFrom = %v", view.Data.Meta.CopiedFrom)
	}

	again, err := svc.MonthsCopyFromPrevious(ctx, MonthRef{Year: 2024, Month: 5})
	if err != nil {
		t.Fatalf("second copy: %v", err)
	}
	if again.CopiedFrom == nil || *again.CopiedFrom != AlreadyExists {
		t.Fatalf("copiedFrom = %v, want %s", again.CopiedFrom, AlreadyExists)
	}
	if again.ID != resp.ID || again.Created() {
		t.Fatalf("unexpected second copy %+v", again)
	}

	events := pub.Events()
	want := []publishedEvent{
		{key: "2024-04", action: amqp.ActionUpserted},
		{key: "2024-05", action: amqp.ActionCopied},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestMonthsCopyFromPreviousEmpty(t *testing.T) {
	svc := NewMonthService(newTestStore(t))

	resp, err := svc.MonthsCopyFromPrevious(context.Background(), MonthRef{Year: 2024, Month: 1})
	if err != nil {
		t.Fatalf("MonthsCopyFromPrevious: %v", err)
	}
	if resp.CopiedFrom != nil {
		t.Fatalf("copiedFrom = %q, want nil", *resp.CopiedFrom)
	}
	if resp.Key != "2024-01" || !resp.Created() {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestMonthsDelete(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewMonthService(newTestStore(t), WithPublisher(pub))

	if _, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: 2024, Month: 5}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, err := svc.MonthsDelete(ctx, MonthRef{Year: 2024, Month: 5})
	if err != nil || !resp.Success {
		t.Fatalf("MonthsDelete = %+v, %v", resp, err)
	}

	resp, err = svc.MonthsDelete(ctx, MonthRef{Year: 2024, Month: 5})
	if err != nil || resp.Success {
		t.Fatalf("second MonthsDelete = %+v, %v", resp, err)
	}

	if n := len(pub.Events()); n != 2 {
		t.Fatalf("published %d events, want 2 (upsert + one delete)", n)
	}
}

func TestMonthsListOrdering(t *testing.T) {
	ctx := context.Background()
	svc := NewMonthService(newTestStore(t))

	for _, ref := range []MonthRef{{2023, 12}, {2024, 2}, {2024, 1}} {
		if _, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: ref.Year, Month: ref.Month}); err != nil {
			t.Fatalf("seed %v: %v", ref, err)
		}
	}

	items, err := svc.MonthsList(ctx)
	if err != nil {
		t.Fatalf("MonthsList: %v", err)
	}
	got := make([]string, 0, len(items))
	for _, it := range items {
		got = append(got, core.MonthKey(it.Year, it.Month))
	}
	want := []string{"2024-02", "2024-01", "2023-12"}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewMonthService(newTestStore(t), WithPublisher(pub))

	if _, err := svc.MonthsUpsert(context.Background(), UpsertRequest{Year: 2024, Month: 5}); err != nil {
		t.Fatalf("MonthsUpsert should succeed despite publish error: %v", err)
	}
	if len(pub.Events()) != 1 {
		t.Fatalf("publish was not attempted")
	}
}

func TestMonthsGetUsesCache(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MonthStore: newTestStore(t)}
	svc := NewMonthService(store, WithCache(cache.NewLRUCache[MonthView](8, time.Minute)))

	if _, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: 2024, Month: 5, Data: assetsDocument(10)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ref := MonthRef{Year: 2024, Month: 5}
	for i := 0; i < 3; i++ {
		if _, err := svc.MonthsGet(ctx, ref); err != nil {
			t.Fatalf("MonthsGet: %v", err)
		}
	}
	if store.gets != 1 {
		t.Fatalf("store hit %d times, want 1", store.gets)
	}

	// Mutating a returned view must not leak into the cache.
	view, _ := svc.MonthsGet(ctx, ref)
	view.Data.Assets[0].Name = core.NewText("changed")
	view, _ = svc.MonthsGet(ctx, ref)
	if view.Data.Assets[0].Name.String() != "asset" {
		t.Fatalf("cached view was mutated")
	}

	if _, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: 2024, Month: 5, Data: assetsDocument(10, 20)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	view, err := svc.MonthsGet(ctx, ref)
	if err != nil {
		t.Fatalf("MonthsGet after update: %v", err)
	}
	if view.Data.Totals.NetWorth != 30 {
		t.Fatalf("stale cache: net worth = %v", view.Data.Totals.NetWorth)
	}
	if store.gets != 2 {
		t.Fatalf("store hit %d times, want 2", store.gets)
	}
}

func TestMonthsGetDoesNotCacheReadRacingAWrite(t *testing.T) {
	ctx := context.Background()
	store := &interleavingStore{MonthStore: newTestStore(t)}
	svc := NewMonthService(store, WithCache(cache.NewLRUCache[MonthView](8, time.Minute)))

	if _, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: 2024, Month: 5, Data: assetsDocument(10)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store.afterGet = func() {
		if _, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: 2024, Month: 5, Data: assetsDocument(10, 20)}); err != nil {
			t.Errorf("concurrent update: %v", err)
		}
	}

	ref := MonthRef{Year: 2024, Month: 5}
	view, err := svc.MonthsGet(ctx, ref)
	if err != nil {
		t.Fatalf("MonthsGet: %v", err)
	}
	if view.Data.Totals.NetWorth != 10 {
		t.Fatalf("first read net worth = %v, want 10", view.Data.Totals.NetWorth)
	}

	view, err = svc.MonthsGet(ctx, ref)
	if err != nil {
		t.Fatalf("MonthsGet after update: %v", err)
	}
	if view.Data.Totals.NetWorth != 30 {
		t.Fatalf("stale view cached: net worth = %v, want 30", view.Data.Totals.NetWorth)
	}
}

func TestMonthsSummary(t *testing.T) {
	ctx := context.Background()
	svc := NewMonthService(newTestStore(t))

	none, err := svc.MonthsSummary(ctx, MonthRef{Year: 2024, Month: 5})
	if err != nil || none != nil {
		t.Fatalf("summary of missing month = %v, %v", none, err)
	}

	if _, err := svc.MonthsUpsert(ctx, UpsertRequest{Year: 2024, Month: 5, Data: assetsDocument(100, 25)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, err := svc.MonthsSummary(ctx, MonthRef{Year: 2024, Month: 5})
	if err != nil || b == nil {
		t.Fatalf("MonthsSummary: %v, %v", b, err)
	}
	if b.NetWorth != 125 || b.ByInstitution["Bank"] != 125 || b.ByType["cash"] != 125 {
		t.Fatalf("unexpected breakdown %+v", b)
	}
}
