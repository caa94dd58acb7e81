// Package tracking resolves tracking links into bot deep links and completes
// the hand-off when the bot presents the start token.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/common/models"
	"chanlinks-go/internal/links"
	"chanlinks-go/internal/metrics"
	"chanlinks-go/internal/tokens"
	"chanlinks-go/internal/validation"
)

// LinkStore is the part of the link repository the resolver needs
type LinkStore interface {
	FindActiveLinkByCode(ctx context.Context, code string) (*models.Link, error)
	RecordClick(ctx context.Context, click *models.Click) error
	RecordStart(ctx context.Context, event *models.StartEvent) error
}

// ExperimentStore looks up experiment definitions by name
type ExperimentStore interface {
	FindExperimentByName(ctx context.Context, name string) (*models.Experiment, error)
}

// RequestContext carries what the resolver needs to know about the caller
type RequestContext struct {
	UserAgent string
	IP        string
	Referer   string
	Now       time.Time
}

// Redirect is the successful outcome of Resolve
type Redirect struct {
	URL       string
	Token     string
	ShortCode string
	Group     *string
	UTM       models.UTMParams
}

// Destination is the successful outcome of ConsumeToken
type Destination struct {
	URL       string
	ShortCode string
}

type Resolver struct {
	links       LinkStore
	experiments ExperimentStore
	tokens      tokens.Store
	geo         GeoLocator
	botUsername string
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewResolver wires the resolver to its stores. geo may be nil to disable lookups.
func NewResolver(linkStore LinkStore, experiments ExperimentStore, tokenStore tokens.Store, geo GeoLocator, botUsername string, m *metrics.Metrics) *Resolver {
	return &Resolver{
		links:       linkStore,
		experiments: experiments,
		tokens:      tokenStore,
		geo:         geo,
		botUsername: botUsername,
		metrics:     m,
		now:         time.Now,
	}
}

// Resolve turns a short code into a bot deep link, recording the click and minting
// a start token on the way. It returns ErrNotFound, ErrExpired or an internal error.
func (r *Resolver) Resolve(ctx context.Context, shortCode string, query models.UTMParams, rc RequestContext) (*Redirect, error) {
	redirect, err := r.resolve(ctx, shortCode, query, rc)

	switch {
	case err == nil:
		r.metrics.Redirect(metrics.OutcomeRedirect)
	case errors.Is(err, ErrNotFound):
		r.metrics.Redirect(metrics.OutcomeNotFound)
	case errors.Is(err, ErrExpired):
		r.metrics.Redirect(metrics.OutcomeExpired)
	default:
		r.metrics.Redirect(metrics.OutcomeError)
	}
	return redirect, err
}

func (r *Resolver) resolve(ctx context.Context, shortCode string, query models.UTMParams, rc RequestContext) (*Redirect, error) {
	if rc.Now.IsZero() {
		rc.Now = r.now()
	}

	link, err := r.links.FindActiveLinkByCode(ctx, shortCode)
	if errors.Is(err, links.ErrLinkNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding link: %w", err)
	}

	if !link.Usable(rc.Now) {
		return nil, ErrExpired
	}

	group, err := r.assignGroup(ctx, link, rc.IP)
	if err != nil {
		return nil, err
	}

	utm := link.UTM.Merge(query)
	client := ClassifyUserAgent(rc.UserAgent)

	click := &models.Click{
		ID:         uuid.New(),
		ShortCode:  link.ShortCode,
		UTM:        utm,
		UserAgent:  rc.UserAgent,
		DeviceType: client.DeviceType,
		Browser:    client.Browser,
		OS:         client.OS,
		IPAddress:  rc.IP,
		ABGroup:    group,
		ClickedAt:  rc.Now,
	}
	if rc.Referer != "" {
		referer := rc.Referer
		click.Referer = &referer
	}
	if r.geo != nil {
		if loc, ok := r.geo.Lookup(rc.IP); ok {
			click.CountryCode = optional(loc.CountryCode)
			click.City = optional(loc.City)
		}
	}

	// Counting the click is the authoritative limit check; a concurrent visitor
	// may have taken the last click since the link was read.
	if err := r.links.RecordClick(ctx, click); err != nil {
		if errors.Is(err, links.ErrClickLimitReached) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("recording click: %w", err)
	}

	token, err := r.tokens.Mint(ctx, link.ShortCode, utm)
	if err != nil {
		return nil, fmt.Errorf("minting start token: %w", err)
	}

	log.Debug().
		Str("short_code", link.ShortCode).
		Str("device", client.DeviceType).
		Interface("group", group).
		Msg("Link resolved")

	return &Redirect{
		URL:       DeepLink(r.botUsername, token.Token),
		Token:     token.Token,
		ShortCode: link.ShortCode,
		Group:     group,
		UTM:       utm,
	}, nil
}

// assignGroup buckets the visitor when the link runs an experiment, otherwise
// the link's fixed group applies.
func (r *Resolver) assignGroup(ctx context.Context, link *models.Link, ip string) (*string, error) {
	if link.ExperimentName == nil || *link.ExperimentName == "" {
		return link.ABGroup, nil
	}

	experiment, err := r.experiments.FindExperimentByName(ctx, *link.ExperimentName)
	if errors.Is(err, links.ErrExperimentNotFound) {
		log.Warn().
			Str("short_code", link.ShortCode).
			Str("experiment", *link.ExperimentName).
			Msg("Experiment missing, keeping fixed group")
		return link.ABGroup, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding experiment: %w", err)
	}

	if err := validation.ValidateWeights(experiment.Groups); err != nil {
		log.Warn().
			Err(err).
			Str("experiment", experiment.Name).
			Msg("Experiment weights invalid, keeping fixed group")
		return link.ABGroup, nil
	}

	return AssignGroup(experiment.Groups, Bucket(ip, link.ShortCode), link.ABGroup), nil
}

// ConsumeToken completes the bot hand-off: the first consumption of a token
// records a start event and yields the link's destination. visitorID may be nil.
func (r *Resolver) ConsumeToken(ctx context.Context, token string, visitorID *int64) (*Destination, error) {
	dest, err := r.consumeToken(ctx, token, visitorID)

	switch {
	case err == nil:
		r.metrics.TokenConsumption(metrics.OutcomeConsumed)
	case errors.Is(err, ErrTokenNotFound):
		r.metrics.TokenConsumption(metrics.OutcomeTokenNotFound)
	case errors.Is(err, ErrLinkNotFound):
		r.metrics.TokenConsumption(metrics.OutcomeLinkNotFound)
	case errors.Is(err, ErrTokenConsumed):
		r.metrics.TokenConsumption(metrics.OutcomeTokenReused)
	default:
		r.metrics.TokenConsumption(metrics.OutcomeError)
	}
	return dest, err
}

func (r *Resolver) consumeToken(ctx context.Context, token string, visitorID *int64) (*Destination, error) {
	record, err := r.tokens.Find(ctx, token)
	if errors.Is(err, tokens.ErrNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding start token: %w", err)
	}
	if record.ConsumedAt != nil {
		return nil, ErrTokenConsumed
	}

	link, err := r.links.FindActiveLinkByCode(ctx, record.ShortCode)
	if errors.Is(err, links.ErrLinkNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding link: %w", err)
	}

	now := r.now()
	switch err := r.tokens.Consume(ctx, token, now); {
	case errors.Is(err, tokens.ErrConsumed):
		return nil, ErrTokenConsumed
	case errors.Is(err, tokens.ErrNotFound):
		return nil, ErrTokenNotFound
	case err != nil:
		return nil, fmt.Errorf("consuming start token: %w", err)
	}

	event := &models.StartEvent{
		ID:        uuid.New(),
		ShortCode: record.ShortCode,
		Token:     token,
		VisitorID: visitorID,
		UTM:       record.UTM,
		StartedAt: now,
	}
	if err := r.links.RecordStart(ctx, event); err != nil {
		// The token is spent; only the analytics row is lost
		log.Error().
			Err(err).
			Str("short_code", record.ShortCode).
			Msg("Failed to record start event")
	}

	return &Destination{URL: link.TargetURL, ShortCode: link.ShortCode}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
