package api

import "errors"

var (
	// ErrNoToken means no access token is available for an authenticated
	// call. Fatal for the call; the caller must log in first.
	ErrNoToken = errors.New("no access token available")
	// ErrSessionExpired means the server rejected the token and the
	// refresh attempt failed. The user must log in again.
	ErrSessionExpired = errors.New("session expired, log in again")
)
