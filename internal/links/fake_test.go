package links

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"chanlinks-go/internal/common/models"
)

// fakeRepository is an in-memory Repository for service and handler tests
type fakeRepository struct {
	mu          sync.Mutex
	links       map[string]*models.Link
	channels    map[int64]*models.Channel
	experiments map[string]*models.Experiment
	clicks      []*models.Click
	starts      []*models.StartEvent

	// codes reported as taken by ShortCodeExists
	taken map[string]bool
	// number of Create calls that fail with a lost insert race
	conflicts int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		links:       make(map[string]*models.Link),
		channels:    make(map[int64]*models.Channel),
		experiments: make(map[string]*models.Experiment),
		taken:       make(map[string]bool),
	}
}

func (f *fakeRepository) FindActiveLinkByCode(_ context.Context, code string) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[code]
	if !ok || !link.IsActive {
		return nil, ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (f *fakeRepository) FindLinkByID(_ context.Context, id uuid.UUID) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if link.ID == id {
			cp := *link
			return &cp, nil
		}
	}
	return nil, ErrLinkNotFound
}

func (f *fakeRepository) ShortCodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.links[code]
	return exists || f.taken[code], nil
}

func (f *fakeRepository) Create(_ context.Context, link *models.Link, channel *models.Channel, experiment *models.Experiment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conflicts > 0 {
		f.conflicts--
		return ErrShortCodeConflict
	}
	if _, exists := f.links[link.ShortCode]; exists {
		return ErrShortCodeConflict
	}
	if experiment != nil {
		if _, exists := f.experiments[experiment.Name]; exists {
			return ErrExperimentExists
		}
		cp := *experiment
		f.experiments[experiment.Name] = &cp
	}

	ch := *channel
	f.channels[channel.ID] = &ch

	cp := *link
	cp.ChannelUsername = channel.Username
	cp.ChannelTitle = channel.Title
	f.links[link.ShortCode] = &cp
	return nil
}

func (f *fakeRepository) RecordClick(_ context.Context, click *models.Click) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	link, ok := f.links[click.ShortCode]
	if !ok || !link.Usable(click.ClickedAt) {
		return ErrClickLimitReached
	}
	link.ClickCount++
	f.clicks = append(f.clicks, click)
	return nil
}

func (f *fakeRepository) FindExperimentByName(_ context.Context, name string) (*models.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	experiment, ok := f.experiments[name]
	if !ok {
		return nil, ErrExperimentNotFound
	}
	return experiment, nil
}

func (f *fakeRepository) RecordStart(_ context.Context, event *models.StartEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, event)
	return nil
}

func (f *fakeRepository) ListByCreator(_ context.Context, creatorID int64) ([]*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Link
	for _, link := range f.links {
		if link.CreatorID == creatorID {
			cp := *link
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepository) Deactivate(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if link.ID == id {
			link.IsActive = false
			return nil
		}
	}
	return ErrLinkNotFound
}

func (f *fakeRepository) Analytics(_ context.Context, link *models.Link) (*models.LinkAnalytics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	analytics := &models.LinkAnalytics{Link: link}
	for _, c := range f.clicks {
		if c.ShortCode == link.ShortCode {
			analytics.TotalClicks++
		}
	}
	return analytics, nil
}
