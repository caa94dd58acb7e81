package dashboard

import "errors"

var (
	ErrFetchingStats  = errors.New("could not load link statistics")
	ErrMissingCreator = errors.New("creator id is required")
)
