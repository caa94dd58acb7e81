package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"chanlinks-go/internal/common/models"
	"chanlinks-go/internal/links"
	"chanlinks-go/internal/tokens"
)

type fakeLinkStore struct {
	mu          sync.Mutex
	links       map[string]*models.Link
	experiments map[string]*models.Experiment
	clicks      []*models.Click
	starts      []*models.StartEvent
	err         error
}

func newFakeLinkStore(ls ...*models.Link) *fakeLinkStore {
	f := &fakeLinkStore{
		links:       make(map[string]*models.Link),
		experiments: make(map[string]*models.Experiment),
	}
	for _, l := range ls {
		f.links[l.ShortCode] = l
	}
	return f
}

func (f *fakeLinkStore) FindActiveLinkByCode(_ context.Context, code string) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	link, ok := f.links[code]
	if !ok || !link.IsActive {
		return nil, links.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (f *fakeLinkStore) RecordClick(_ context.Context, click *models.Click) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[click.ShortCode]
	if !ok || !link.Usable(click.ClickedAt) {
		return links.ErrClickLimitReached
	}
	link.ClickCount++
	f.clicks = append(f.clicks, click)
	return nil
}

func (f *fakeLinkStore) RecordStart(_ context.Context, event *models.StartEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, event)
	return nil
}

func (f *fakeLinkStore) FindExperimentByName(_ context.Context, name string) (*models.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	experiment, ok := f.experiments[name]
	if !ok {
		return nil, links.ErrExperimentNotFound
	}
	return experiment, nil
}

// memoryTokenStore is an in-memory tokens.Store
type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.StartToken
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{tokens: make(map[string]*models.StartToken)}
}

func (m *memoryTokenStore) Mint(_ context.Context, shortCode string, utm models.UTMParams) (*models.StartToken, error) {
	value, err := tokens.Generate()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tokens[value]; exists {
		return nil, errors.New("collision")
	}
	record := &models.StartToken{Token: value, ShortCode: shortCode, UTM: utm, CreatedAt: time.Now()}
	m.tokens[value] = record
	cp := *record
	return &cp, nil
}

func (m *memoryTokenStore) Find(_ context.Context, token string) (*models.StartToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.tokens[token]
	if !ok {
		return nil, tokens.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

func (m *memoryTokenStore) Consume(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.tokens[token]
	if !ok {
		return tokens.ErrNotFound
	}
	if record.ConsumedAt != nil {
		return tokens.ErrConsumed
	}
	record.ConsumedAt = &at
	return nil
}

func (m *memoryTokenStore) Close() error { return nil }

type fakeGeo map[string]Location

func (g fakeGeo) Lookup(ip string) (Location, bool) {
	loc, ok := g[ip]
	return loc, ok
}
