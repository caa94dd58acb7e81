package links

import (
	"time"

	"github.com/google/uuid"

	"chanlinks-go/internal/common/models"
)

// ChannelRef identifies the channel a link is created for
type ChannelRef struct {
	ID       int64  `json:"id" validate:"required"`
	Username string `json:"username" validate:"required,channelusername"`
	Title    string `json:"title" validate:"max=255"`
}

// ABTestConfig configures the experiment attached to a link. Groups may be empty
// when an existing experiment is referenced by name or only a fixed group is wanted.
type ABTestConfig struct {
	ExperimentName string              `json:"experimentName" validate:"omitempty,max=100"`
	Group          string              `json:"group" validate:"omitempty,max=64"`
	Groups         models.GroupWeights `json:"groups" validate:"omitempty,max=10,weights,dive"`
}

type CreateLinkRequest struct {
	Channel     ChannelRef       `json:"channel" validate:"required"`
	Kind        string           `json:"kind" validate:"required,oneof=post subscribe"`
	PostURL     string           `json:"postUrl" validate:"required_if=Kind post,omitempty,url"`
	Title       string           `json:"title" validate:"max=200"`
	Description string           `json:"description" validate:"max=1000"`
	UTM         models.UTMParams `json:"utm" validate:"omitempty,max=20,dive,keys,utmkey,endkeys,max=256"`
	ABTest      *ABTestConfig    `json:"abTest" validate:"omitempty"`
	ExpiresAt   *time.Time       `json:"expiresAt"`
	MaxClicks   *int             `json:"maxClicks" validate:"omitempty,min=1"`
	GenerateQR  bool             `json:"generateQr"`
}

type CreateLinkResponse struct {
	ShortCode    string     `json:"shortCode"`
	TrackingURL  string     `json:"trackingUrl"`
	QRCode       string     `json:"qrCode,omitempty"`
	TargetURL    string     `json:"targetUrl"`
	ExperimentID *uuid.UUID `json:"experimentId,omitempty"`
}
