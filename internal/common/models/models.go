package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Link kinds
const (
	LinkKindPost      = "post"
	LinkKindSubscribe = "subscribe"
)

// Device classes
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// UTMParams is a set of UTM-style tracking parameters, stored as JSONB.
type UTMParams map[string]string

// Merge returns a new set holding p overridden by every key of override.
func (p UTMParams) Merge(override UTMParams) UTMParams {
	merged := make(UTMParams, len(p)+len(override))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// Value implements driver.Valuer
func (p UTMParams) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner
func (p *UTMParams) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// GroupWeight is one share of an experiment's traffic split.
type GroupWeight struct {
	Group  string `json:"group" validate:"required,max=64"`
	Weight int    `json:"weight" validate:"min=0,max=100"`
}

// GroupWeights keeps the stored order of an experiment's groups; bucketing walks it in order.
type GroupWeights []GroupWeight

// Total returns the sum of all weights.
func (g GroupWeights) Total() int {
	total := 0
	for _, gw := range g {
		total += gw.Weight
	}
	return total
}

// Value implements driver.Valuer
func (g GroupWeights) Value() (driver.Value, error) {
	if g == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(g)
}

// Scan implements sql.Scanner
func (g *GroupWeights) Scan(src interface{}) error {
	return scanJSON(src, g)
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}

// Channel is the Telegram channel a link belongs to.
type Channel struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Link represents one shareable tracking link.
type Link struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ShortCode      string     `db:"short_code" json:"shortCode"`
	CreatorID      int64      `db:"creator_id" json:"creatorId"`
	ChannelID      int64      `db:"channel_id" json:"channelId"`
	Kind           string     `db:"kind" json:"kind"`
	TargetURL      string     `db:"target_url" json:"targetUrl"`
	Title          string     `db:"title" json:"title"`
	Description    string     `db:"description" json:"description"`
	UTM            UTMParams  `db:"utm" json:"utm"`
	IsActive       bool       `db:"is_active" json:"isActive"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	MaxClicks      *int       `db:"max_clicks" json:"maxClicks,omitempty"`
	ExperimentName *string    `db:"experiment_name" json:"experimentName,omitempty"`
	ABGroup        *string    `db:"ab_group" json:"abGroup,omitempty"`
	ClickCount     int        `db:"click_count" json:"clickCount"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`

	// Joined from channels
	ChannelUsername string `db:"channel_username" json:"channelUsername"`
	ChannelTitle    string `db:"channel_title" json:"channelTitle"`
}

// Usable reports whether the link may be followed at the given instant.
func (l *Link) Usable(now time.Time) bool {
	return l.IsActive && !l.Expired(now) && !l.Exhausted()
}

// Expired reports whether the expiry timestamp lies before now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Exhausted reports whether the click limit has been reached.
func (l *Link) Exhausted() bool {
	return l.MaxClicks != nil && l.ClickCount >= *l.MaxClicks
}

// Experiment is a named traffic split.
type Experiment struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Groups    GroupWeights `db:"groups" json:"groups"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}

// Click represents one resolved visit to a link.
type Click struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ShortCode   string    `db:"short_code" json:"shortCode"`
	VisitorID   *int64    `db:"visitor_id" json:"visitorId,omitempty"`
	UTM         UTMParams `db:"utm" json:"utm"`
	UserAgent   string    `db:"user_agent" json:"userAgent"`
	DeviceType  string    `db:"device_type" json:"deviceType"`
	Browser     string    `db:"browser" json:"browser"`
	OS          string    `db:"os" json:"os"`
	IPAddress   string    `db:"ip_address" json:"ipAddress"`
	CountryCode *string   `db:"country_code" json:"countryCode,omitempty"`
	City        *string   `db:"city" json:"city,omitempty"`
	Referer     *string   `db:"referer" json:"referer,omitempty"`
	ABGroup     *string   `db:"ab_group" json:"abGroup,omitempty"`
	ClickedAt   time.Time `db:"clicked_at" json:"clickedAt"`
}

// StartToken bridges the HTTP redirect and the bot deep-link callback.
type StartToken struct {
	Token      string     `db:"token" json:"token"`
	ShortCode  string     `db:"short_code" json:"shortCode"`
	UTM        UTMParams  `db:"utm" json:"utm"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	ConsumedAt *time.Time `db:"consumed_at" json:"consumedAt,omitempty"`
}

// StartEvent records a visitor arriving in the bot through a start token.
type StartEvent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ShortCode string    `db:"short_code" json:"shortCode"`
	Token     string    `db:"token" json:"token"`
	VisitorID *int64    `db:"visitor_id" json:"visitorId,omitempty"`
	UTM       UTMParams `db:"utm" json:"utm"`
	StartedAt time.Time `db:"started_at" json:"startedAt"`
}

// CountStat is a labelled counter used by the analytics breakdowns.
type CountStat struct {
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}

// ClicksByDay represents clicks grouped by day
type ClicksByDay struct {
	Date  time.Time `db:"date" json:"date"`
	Count int       `db:"count" json:"count"`
}

// LinkAnalytics aggregates the click history of one link.
type LinkAnalytics struct {
	Link           *Link         `json:"link"`
	TotalClicks    int           `json:"totalClicks"`
	UniqueVisitors int           `json:"uniqueVisitors"`
	TotalStarts    int           `json:"totalStarts"`
	Devices        []CountStat   `json:"devices"`
	Browsers       []CountStat   `json:"browsers"`
	OperatingSys   []CountStat   `json:"operatingSystems"`
	Countries      []CountStat   `json:"countries"`
	Sources        []CountStat   `json:"utmSources"`
	Groups         []CountStat   `json:"abGroups"`
	ClicksByDay    []ClicksByDay `json:"clicksByDay"`
}

// DashboardStats represents the per-creator totals shown on the dashboard
type DashboardStats struct {
	TotalLinks  int64        `db:"total_links" json:"totalLinks"`
	ActiveLinks int64        `db:"active_links" json:"activeLinks"`
	TotalClicks int64        `db:"total_clicks" json:"totalClicks"`
	TotalStarts int64        `db:"total_starts" json:"totalStarts"`
	RecentLinks []RecentLink `json:"recentLinks"`
}

// RecentLink represents a recently created tracking link
type RecentLink struct {
	ShortCode  string `db:"short_code" json:"shortCode"`
	Title      string `db:"title" json:"title"`
	TargetURL  string `db:"target_url" json:"targetUrl"`
	ClickCount int    `db:"click_count" json:"clickCount"`
	CreatedAt  string `db:"created_at" json:"createdAt"`
}
