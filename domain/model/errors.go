package model

import "errors"

// Failure categories surfaced by the connection and publish flows. Provider
// error bodies stay in the logs; callers only ever see these.
var (
	ErrNotConnected        = errors.New("platform not connected")
	ErrRefreshFailed       = errors.New("token refresh failed")
	ErrRefreshNotSupported = errors.New("platform does not support token refresh")
)
