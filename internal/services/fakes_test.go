package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"portfolio_bk/internal/storage"
)

// fakeSource serves dictionaries from memory and counts fetches.
type fakeSource struct {
	mu     sync.Mutex
	docs   map[string]string
	calls  map[string]int
	gate   chan struct{}
	onCall func(lang string)
}

func newFakeSource(docs map[string]string) *fakeSource {
	return &fakeSource{docs: docs, calls: map[string]int{}}
}

func (s *fakeSource) Fetch(ctx context.Context, lang string) ([]byte, error) {
	s.mu.Lock()
	s.calls[lang]++
	gate := s.gate
	onCall := s.onCall
	doc, ok := s.docs[lang]
	s.mu.Unlock()

	if onCall != nil {
		onCall(lang)
	}
	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, fmt.Errorf("404 %s", lang)
	}
	return []byte(doc), nil
}

func (s *fakeSource) count(lang string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[lang]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testKeys = storage.Keys{Prefix: "test_"}

const (
	ptDoc = `{"nav": {"portfolio": "Portfólio", "contact": "Contato"}, "greeting": "Olá, {{name}}!", "only_pt": "Somente"}`
	enDoc = `{"nav": {"portfolio": "Portfolio", "contact": ""}, "greeting": "Hello, {{name}}!"}`
)

func newTestLoader(source *fakeSource, store *storage.MemoryStore, clock *fakeClock) *Loader {
	return NewLoader(source, store, LoaderOptions{
		DefaultLanguage: "pt",
		CacheVersion:    "v1",
		Expiration:      7 * 24 * time.Hour,
		Keys:            testKeys,
		Now:             clock.Now,
	})
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}
