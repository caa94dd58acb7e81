package links

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanlinks-go/internal/common/models"
	"chanlinks-go/internal/metrics"
)

const creatorID int64 = 1001

func newTestService(repo Repository) *Service {
	return NewService(repo, "https://links.example.com/", metrics.New())
}

func subscribeRequest() *CreateLinkRequest {
	return &CreateLinkRequest{
		Channel: ChannelRef{ID: -100123, Username: "@mychannel", Title: "My Channel"},
		Kind:    models.LinkKindSubscribe,
		Title:   "Spring promo",
		UTM:     models.UTMParams{"utm_source": "default"},
	}
}

func TestCreateLink_Subscribe(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	resp, err := svc.CreateLink(context.Background(), creatorID, subscribeRequest())
	require.NoError(t, err)

	assert.Len(t, resp.ShortCode, codeLength)
	assert.Equal(t, "https://links.example.com/track/"+resp.ShortCode, resp.TrackingURL)
	assert.Equal(t, "https://t.me/mychannel", resp.TargetURL)
	assert.Empty(t, resp.QRCode)
	assert.Nil(t, resp.ExperimentID)

	stored := repo.links[resp.ShortCode]
	require.NotNil(t, stored)
	assert.True(t, stored.IsActive)
	assert.Equal(t, creatorID, stored.CreatorID)
	assert.Equal(t, "mychannel", repo.channels[-100123].Username)
	assert.Equal(t, models.UTMParams{"utm_source": "default"}, stored.UTM)
}

func TestCreateLink_PostWithQR(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	req := subscribeRequest()
	req.Kind = models.LinkKindPost
	req.PostURL = "https://t.me/mychannel/42"
	req.GenerateQR = true

	resp, err := svc.CreateLink(context.Background(), creatorID, req)
	require.NoError(t, err)

	assert.Equal(t, "https://t.me/mychannel/42", resp.TargetURL)
	assert.True(t, strings.HasPrefix(resp.QRCode, "data:image/png;base64,"))
}

func TestCreateLink_Experiment(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)

	req := subscribeRequest()
	req.ABTest = &ABTestConfig{
		Group:  "control",
		Groups: models.GroupWeights{{Group: "A", Weight: 50}, {Group: "B", Weight: 50}},
	}

	resp, err := svc.CreateLink(context.Background(), creatorID, req)
	require.NoError(t, err)
	require.NotNil(t, resp.ExperimentID)

	stored := repo.links[resp.ShortCode]
	require.NotNil(t, stored.ExperimentName)
	assert.Equal(t, "exp-"+resp.ShortCode, *stored.ExperimentName)
	require.NotNil(t, stored.ABGroup)
	assert.Equal(t, "control", *stored.ABGroup)

	experiment, err := repo.FindExperimentByName(context.Background(), *stored.ExperimentName)
	require.NoError(t, err)
	assert.Equal(t, *resp.ExperimentID, experiment.ID)
	assert.Equal(t, req.ABTest.Groups, experiment.Groups)
}

func TestCreateLink_ReuseExperiment(t *testing.T) {
	repo := newFakeRepository()
	repo.experiments["spring"] = &models.Experiment{ID: uuid.New(), Name: "spring"}
	svc := newTestService(repo)

	req := subscribeRequest()
	req.ABTest = &ABTestConfig{ExperimentName: "spring"}

	resp, err := svc.CreateLink(context.Background(), creatorID, req)
	require.NoError(t, err)
	assert.Nil(t, resp.ExperimentID)
	assert.Equal(t, "spring", *repo.links[resp.ShortCode].ExperimentName)

	req.ABTest = &ABTestConfig{ExperimentName: "missing"}
	_, err = svc.CreateLink(context.Background(), creatorID, req)
	assert.ErrorIs(t, err, ErrExperimentNotFound)
}

func TestCreateLink_ExperimentNameTaken(t *testing.T) {
	repo := newFakeRepository()
	repo.experiments["spring"] = &models.Experiment{ID: uuid.New(), Name: "spring"}
	svc := newTestService(repo)

	req := subscribeRequest()
	req.ABTest = &ABTestConfig{
		ExperimentName: "spring",
		Groups:         models.GroupWeights{{Group: "A", Weight: 100}},
	}

	_, err := svc.CreateLink(context.Background(), creatorID, req)
	assert.ErrorIs(t, err, ErrExperimentExists)
	assert.Empty(t, repo.links)
}

func TestCreateLink_RetriesLostInsertRace(t *testing.T) {
	repo := newFakeRepository()
	repo.conflicts = 2
	svc := newTestService(repo)

	resp, err := svc.CreateLink(context.Background(), creatorID, subscribeRequest())
	require.NoError(t, err)
	assert.Len(t, repo.links, 1)
	assert.Contains(t, repo.links, resp.ShortCode)
}

func TestCreateLink_GivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newFakeRepository()
	repo.conflicts = createAttempts
	svc := newTestService(repo)

	_, err := svc.CreateLink(context.Background(), creatorID, subscribeRequest())
	assert.ErrorIs(t, err, ErrShortCodeConflict)
	assert.Empty(t, repo.links)
}

func TestCreateLink_PastExpiry(t *testing.T) {
	svc := newTestService(newFakeRepository())

	req := subscribeRequest()
	past := time.Now().Add(-time.Hour)
	req.ExpiresAt = &past

	_, err := svc.CreateLink(context.Background(), creatorID, req)
	assert.ErrorIs(t, err, ErrInvalidExpiry)
}

func TestOwnership(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	resp, err := svc.CreateLink(ctx, creatorID, subscribeRequest())
	require.NoError(t, err)
	linkID := repo.links[resp.ShortCode].ID

	_, err = svc.GetAnalytics(ctx, linkID, creatorID+1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, svc.DeleteLink(ctx, linkID, creatorID+1), ErrUnauthorized)
	assert.True(t, repo.links[resp.ShortCode].IsActive)

	analytics, err := svc.GetAnalytics(ctx, linkID, creatorID)
	require.NoError(t, err)
	assert.Equal(t, resp.ShortCode, analytics.Link.ShortCode)

	require.NoError(t, svc.DeleteLink(ctx, linkID, creatorID))
	assert.False(t, repo.links[resp.ShortCode].IsActive)

	_, err = svc.GetAnalytics(ctx, uuid.New(), creatorID)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestListLinks(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	links, err := svc.ListLinks(ctx, creatorID)
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateLink(ctx, creatorID, subscribeRequest())
		require.NoError(t, err)
	}
	_, err = svc.CreateLink(ctx, creatorID+1, subscribeRequest())
	require.NoError(t, err)

	links, err = svc.ListLinks(ctx, creatorID)
	require.NoError(t, err)
	assert.Len(t, links, 3)
}

func TestGenerateCode(t *testing.T) {
	code, err := generateCode()
	require.NoError(t, err)
	assert.Len(t, code, codeLength)
	for _, c := range code {
		assert.Contains(t, alphabet, string(c))
	}
}
