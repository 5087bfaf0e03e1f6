package core

import "errors"

var (
	// ErrNotConnected is returned by invocations attempted without a live
	// channel.
	ErrNotConnected = errors.New("not connected")
)
