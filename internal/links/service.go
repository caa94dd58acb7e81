package links

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/common/models"
	"chanlinks-go/internal/metrics"
)

const (
	alphabet       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength     = 8
	createAttempts = 5
)

type Service struct {
	repo    Repository
	baseURL string
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, baseURL string, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		metrics: m,
		now:     time.Now,
	}
}

// TrackingURL returns the public URL that resolves the short code
func (s *Service) TrackingURL(shortCode string) string {
	return s.baseURL + "/track/" + shortCode
}

// CreateLink creates a tracking link for the creator. The short code is generated,
// checked against the store and retried on a lost insert race.
func (s *Service) CreateLink(ctx context.Context, creatorID int64, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	now := s.now()

	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}

	channel := &models.Channel{
		ID:       req.Channel.ID,
		Username: strings.TrimPrefix(req.Channel.Username, "@"),
		Title:    req.Channel.Title,
	}

	targetURL := req.PostURL
	if req.Kind == models.LinkKindSubscribe {
		targetURL = "https://t.me/" + channel.Username
	}

	link := &models.Link{
		CreatorID:   creatorID,
		ChannelID:   channel.ID,
		Kind:        req.Kind,
		TargetURL:   targetURL,
		Title:       req.Title,
		Description: req.Description,
		UTM:         req.UTM,
		IsActive:    true,
		ExpiresAt:   req.ExpiresAt,
		MaxClicks:   req.MaxClicks,
		CreatedAt:   now,
	}
	if link.UTM == nil {
		link.UTM = models.UTMParams{}
	}

	var experiment *models.Experiment
	if ab := req.ABTest; ab != nil {
		if ab.Group != "" {
			group := ab.Group
			link.ABGroup = &group
		}

		switch {
		case len(ab.Groups) > 0:
			experiment = &models.Experiment{
				ID:        uuid.New(),
				Name:      ab.ExperimentName,
				Groups:    ab.Groups,
				CreatedAt: now,
			}
		case ab.ExperimentName != "":
			existing, err := s.repo.FindExperimentByName(ctx, ab.ExperimentName)
			if err != nil {
				return nil, err
			}
			name := existing.Name
			link.ExperimentName = &name
		}
	}

	autoName := experiment != nil && experiment.Name == ""

	var err error
	for attempts := 0; attempts < createAttempts; attempts++ {
		if err = s.createWithFreshCode(ctx, link, channel, experiment, autoName); !errors.Is(err, ErrShortCodeConflict) {
			break
		}
		log.Warn().
			Int("attempt", attempts+1).
			Str("short_code", link.ShortCode).
			Msg("Short code collision, regenerating")
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("short_code", link.ShortCode).
		Int64("creator_id", creatorID).
		Str("kind", link.Kind).
		Msg("Link created")
	s.metrics.LinkCreated(link.Kind)

	response := &CreateLinkResponse{
		ShortCode:   link.ShortCode,
		TrackingURL: s.TrackingURL(link.ShortCode),
		TargetURL:   link.TargetURL,
	}
	if experiment != nil {
		response.ExperimentID = &experiment.ID
	}

	if req.GenerateQR {
		qr, err := qrDataURL(response.TrackingURL)
		if err != nil {
			// The link exists already, a missing QR code is not worth failing the request
			log.Error().Err(err).Str("short_code", link.ShortCode).Msg("Failed to render QR code")
		} else {
			response.QRCode = qr
		}
	}

	return response, nil
}

// createWithFreshCode assigns a new short code and stores the link. Experiments
// created without a name are named after the short code.
func (s *Service) createWithFreshCode(ctx context.Context, link *models.Link, channel *models.Channel, experiment *models.Experiment, autoName bool) error {
	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		return err
	}

	link.ID = uuid.New()
	link.ShortCode = code
	if experiment != nil {
		if autoName {
			experiment.Name = "exp-" + code
		}
		name := experiment.Name
		link.ExperimentName = &name
	}

	return s.repo.Create(ctx, link, channel, experiment)
}

// ListLinks returns every link of the creator, newest first
func (s *Service) ListLinks(ctx context.Context, creatorID int64) ([]*models.Link, error) {
	links, err := s.repo.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []*models.Link{}
	}
	return links, nil
}

// GetAnalytics aggregates the click history of a link owned by the creator
func (s *Service) GetAnalytics(ctx context.Context, linkID uuid.UUID, creatorID int64) (*models.LinkAnalytics, error) {
	link, err := s.ownedLink(ctx, linkID, creatorID)
	if err != nil {
		return nil, err
	}
	return s.repo.Analytics(ctx, link)
}

// DeleteLink deactivates a link owned by the creator
func (s *Service) DeleteLink(ctx context.Context, linkID uuid.UUID, creatorID int64) error {
	if _, err := s.ownedLink(ctx, linkID, creatorID); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, linkID); err != nil {
		return err
	}

	log.Info().
		Str("link_id", linkID.String()).
		Int64("creator_id", creatorID).
		Msg("Link deactivated")
	return nil
}

func (s *Service) ownedLink(ctx context.Context, linkID uuid.UUID, creatorID int64) (*models.Link, error) {
	link, err := s.repo.FindLinkByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.CreatorID != creatorID {
		return nil, ErrUnauthorized
	}
	return link, nil
}

func (s *Service) generateUniqueCode(ctx context.Context) (string, error) {
	for attempts := 0; attempts < createAttempts; attempts++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}

		exists, err := s.repo.ShortCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrShortCodeConflict
}

func generateCode() (string, error) {
	length := big.NewInt(int64(len(alphabet)))
	code := make([]byte, codeLength)

	for i := range code {
		n, err := rand.Int(rand.Reader, length)
		if err != nil {
			return "", fmt.Errorf("generating short code: %w", err)
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}
