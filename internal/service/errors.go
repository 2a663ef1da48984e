package service

import (
	"errors"

	"chatzone/internal/worker"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrPeerUnreachable = errors.New("peer unreachable")
	ErrPeerBusy        = errors.New("peer busy")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrPushDisabled    = errors.New("push gateway not configured")
	ErrNotSender       = errors.New("requester is not the message sender")
	ErrMessageNotFound = errors.New("message not found")
	ErrRoomNotFound    = errors.New("room not found")

	// ErrQueueFull is returned when background work cannot be enqueued.
	ErrQueueFull = worker.ErrQueueFull
)
