package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("missing or invalid api token")
	ErrFieldMap     = errors.New("invalid form field map")
)
