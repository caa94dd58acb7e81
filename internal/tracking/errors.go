package tracking

import "errors"

// Resolution outcomes. ErrNotFound also covers deactivated links so callers
// cannot tell whether a code ever existed.
var (
	ErrNotFound = errors.New("link not found")
	ErrExpired  = errors.New("link expired")
)

// Token consumption outcomes
var (
	ErrTokenNotFound = errors.New("start token not found")
	ErrLinkNotFound  = errors.New("link for start token not found")
	ErrTokenConsumed = errors.New("start token already used")
)
