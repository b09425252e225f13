package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidParameters = errors.New("invalid study parameters")
	ErrVerseNotFound     = errors.New("verse not found")
	ErrProviderFailure   = errors.New("provider failure")
)
