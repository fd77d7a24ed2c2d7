package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"portfolio_bk/internal/core"
	"portfolio_bk/internal/pubsub"
	"portfolio_bk/internal/storage"
)

// recorder collects published events in order.
type recorder struct {
	mu     sync.Mutex
	events []string
	last   map[string]any
}

func record(bus *pubsub.Bus, events ...string) *recorder {
	r := &recorder{last: map[string]any{}}
	for _, event := range events {
		bus.Subscribe(event, func(payload any) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, event)
			r.last[event] = payload
			return nil
		})
	}
	return r
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recorder) payload(event string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[event]
}

func newTestState(store *storage.MemoryStore, bus core.Publisher) *StateHolder {
	clock := newClock()
	return NewStateHolder(store, bus, StateOptions{
		DefaultLanguage: "pt",
		CacheVersion:    "v1",
		Now:             clock.Now,
	})
}

func TestSetLanguagePersistsAndAnnounces(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(0)
	bus := pubsub.New(nil)
	rec := record(bus, EventLanguageChanged)
	h := newTestState(store, bus)

	if err := h.SetLanguage(ctx, "en"); err != nil {
		t.Fatalf("set language: %v", err)
	}
	if got := h.Language(); got != "en" {
		t.Fatalf("Language() = %q", got)
	}
	for key, want := range map[string]string{storage.LanguageKey: "en", storage.LanguageVersionKey: "v1"} {
		if got, _, _ := store.Get(ctx, key); got != want {
			t.Fatalf("%s = %q, want %q", key, got, want)
		}
	}
	if _, ok, _ := store.Get(ctx, storage.LanguageDateKey); !ok {
		t.Fatal("expected language date to be stored")
	}

	change, ok := rec.payload(EventLanguageChanged).(LanguageChange)
	if !ok || change != (LanguageChange{Old: "pt", New: "en"}) {
		t.Fatalf("payload = %#v", rec.payload(EventLanguageChanged))
	}
}

func TestSetLanguageRejectsEmpty(t *testing.T) {
	bus := pubsub.New(nil)
	rec := record(bus, EventLanguageChanged)
	h := newTestState(storage.NewMemoryStore(0), bus)

	if err := h.SetLanguage(context.Background(), ""); !errors.Is(err, ErrEmptyLanguage) {
		t.Fatalf("expected ErrEmptyLanguage, got %v", err)
	}
	if h.Language() != "pt" {
		t.Fatalf("language changed to %q", h.Language())
	}
	if len(rec.seen()) != 0 {
		t.Fatalf("unexpected events %v", rec.seen())
	}
}

func TestSetLanguageSurvivesFullStorage(t *testing.T) {
	h := newTestState(storage.NewMemoryStore(1), pubsub.New(nil))
	if err := h.SetLanguage(context.Background(), "es"); err != nil {
		t.Fatalf("storage failure must not fail SetLanguage: %v", err)
	}
	if h.Language() != "es" {
		t.Fatalf("Language() = %q", h.Language())
	}
}

func TestTransitionSuppressesAnnouncement(t *testing.T) {
	bus := pubsub.New(nil)
	rec := record(bus, EventLanguageChanged)
	h := newTestState(storage.NewMemoryStore(0), bus)

	h.BeginTransition()
	if !h.Snapshot().Transitioning {
		t.Fatal("expected transition flag")
	}
	if err := h.SetLanguage(context.Background(), "en"); err != nil {
		t.Fatalf("set language: %v", err)
	}
	h.EndTransition()

	if len(rec.seen()) != 0 {
		t.Fatalf("expected no events during transition, got %v", rec.seen())
	}
	if h.Snapshot().Transitioning {
		t.Fatal("transition flag not cleared")
	}
}

func TestSetPage(t *testing.T) {
	bus := pubsub.New(nil)
	rec := record(bus, EventPageChanged)
	h := newTestState(storage.NewMemoryStore(0), bus)

	if err := h.SetPage(-1); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
	if err := h.SetPage(2); err != nil {
		t.Fatalf("set page: %v", err)
	}
	if h.Snapshot().Page != 2 {
		t.Fatalf("Page = %d", h.Snapshot().Page)
	}
	if got := rec.payload(EventPageChanged); got != (PageChange{Old: 0, New: 2}) {
		t.Fatalf("payload = %#v", got)
	}
	if n := len(rec.seen()); n != 1 {
		t.Fatalf("expected one event, got %d", n)
	}
}

func TestMarkLanguageLoaded(t *testing.T) {
	h := newTestState(storage.NewMemoryStore(0), nil)
	h.MarkLanguageLoaded("pt")
	h.MarkLanguageLoaded("pt")
	h.MarkLanguageLoaded("")
	h.MarkLanguageLoaded("en")

	if got := h.Snapshot().LoadedLanguages; !slices.Equal(got, []string{"pt", "en"}) {
		t.Fatalf("LoadedLanguages = %v", got)
	}
	if !h.IsLanguageLoaded("en") || h.IsLanguageLoaded("es") {
		t.Fatal("IsLanguageLoaded mismatch")
	}

	snap := h.Snapshot()
	snap.LoadedLanguages[0] = "xx"
	if h.IsLanguageLoaded("xx") {
		t.Fatal("snapshot must be a copy")
	}
}

func TestSaveAndRestoreAcrossSessions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(0)

	first := newTestState(store, nil)
	if err := first.SetLanguage(ctx, "en"); err != nil {
		t.Fatalf("set language: %v", err)
	}
	first.MarkLanguageLoaded("en")
	if err := first.SetPage(3); err != nil {
		t.Fatalf("set page: %v", err)
	}
	if err := first.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := newTestState(store, nil)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got := second.Snapshot()
	if got.Language != "en" || got.Page != 3 || !slices.Equal(got.LoadedLanguages, []string{"en"}) {
		t.Fatalf("restored state = %#v", got)
	}
}

func TestRestoreMergesPresentFields(t *testing.T) {
	tests := []struct {
		name string
		blob string
		lang string
		page int
	}{
		{name: "page only", blob: `{"currentPage": 4}`, lang: "pt", page: 4},
		{name: "language only", blob: `{"language": "es"}`, lang: "es", page: 1},
		{name: "malformed", blob: `{`, lang: "pt", page: 1},
		{name: "negative page ignored", blob: `{"currentPage": -2}`, lang: "pt", page: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore(0)
			_ = store.Set(ctx, storage.StateKey, tt.blob)
			h := newTestState(store, nil)
			_ = h.SetPage(1)

			if err := h.Restore(ctx); err != nil {
				t.Fatalf("restore: %v", err)
			}
			got := h.Snapshot()
			if got.Language != tt.lang || got.Page != tt.page {
				t.Fatalf("state = %#v, want language %q page %d", got, tt.lang, tt.page)
			}
		})
	}
}

func TestRestoreUsesStoredLanguageKey(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{name: "matching version", version: "v1", want: "es"},
		{name: "stale version", version: "v0", want: "pt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore(0)
			_ = store.Set(ctx, storage.LanguageKey, "es")
			_ = store.Set(ctx, storage.LanguageVersionKey, tt.version)
			h := newTestState(store, nil)

			if err := h.Restore(ctx); err != nil {
				t.Fatalf("restore: %v", err)
			}
			if got := h.Language(); got != tt.want {
				t.Fatalf("Language() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(0)
	bus := pubsub.New(nil)
	rec := record(bus, EventStateReset)
	h := newTestState(store, bus)

	_ = h.SetLanguage(ctx, "en")
	_ = h.SetPage(5)
	h.MarkLanguageLoaded("en")
	if err := h.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := h.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got := h.Snapshot()
	if got.Language != "pt" || got.Page != 0 || len(got.LoadedLanguages) != 0 {
		t.Fatalf("state after reset = %#v", got)
	}
	if _, ok, _ := store.Get(ctx, storage.StateKey); ok {
		t.Fatal("saved state not removed")
	}
	if snap, ok := rec.payload(EventStateReset).(State); !ok || snap.Language != "pt" {
		t.Fatalf("reset payload = %#v", rec.payload(EventStateReset))
	}
	for _, key := range []string{storage.LanguageKey, storage.LanguageVersionKey, storage.LanguageDateKey} {
		if _, ok, _ := store.Get(ctx, key); ok {
			t.Fatalf("%s not removed", key)
		}
	}

	next := newTestState(store, nil)
	if err := next.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := next.Language(); got != "pt" {
		t.Fatalf("language restored after reset = %q, want pt", got)
	}
}

func TestNilBusDropsEvents(t *testing.T) {
	ctx := context.Background()
	var bus *pubsub.Bus
	h := NewStateHolder(storage.NewMemoryStore(0), bus, StateOptions{DefaultLanguage: "pt"})

	if err := h.SetLanguage(ctx, "en"); err != nil {
		t.Fatalf("set language: %v", err)
	}
	if err := h.SetPage(1); err != nil {
		t.Fatalf("set page: %v", err)
	}
	if err := h.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
}
