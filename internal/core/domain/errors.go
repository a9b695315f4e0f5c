package domain

import "errors"

var (
	ErrNotLive              = errors.New("session is not live")
	ErrNoCapture            = errors.New("no active capture stream")
	ErrNotConnected         = errors.New("transport client not connected")
	ErrCallNotFound         = errors.New("call not found")
	ErrTrackIndexOutOfRange = errors.New("track index out of range")
)
