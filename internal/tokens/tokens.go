// Package tokens stores the single-use start tokens that carry a visitor from the
// tracking redirect into the bot's deep link.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"chanlinks-go/internal/common/models"
)

var (
	ErrNotFound  = errors.New("start token not found")
	ErrConsumed  = errors.New("start token already consumed")
	ErrExhausted = errors.New("could not mint a unique start token")
)

const (
	tokenBytes   = 16
	mintAttempts = 3
)

// Store defines the interface for the different token store implementations
type Store interface {
	// Mint creates a fresh token bound to the short code and the merged UTM set
	Mint(ctx context.Context, shortCode string, utm models.UTMParams) (*models.StartToken, error)

	// Find returns the token record, or ErrNotFound
	Find(ctx context.Context, token string) (*models.StartToken, error)

	// Consume marks the token as used. Exactly one caller wins; every later call gets ErrConsumed.
	Consume(ctx context.Context, token string, at time.Time) error

	// Close cleans up any resources
	Close() error
}

// Generate returns a new URL-safe token value
func Generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// mint retries insert with freshly generated values until one is accepted.
// insert reports false when the value is already taken.
func mint(insert func(token string) (bool, error)) (string, error) {
	for attempts := 0; attempts < mintAttempts; attempts++ {
		token, err := Generate()
		if err != nil {
			return "", err
		}

		ok, err := insert(token)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
	}
	return "", ErrExhausted
}
