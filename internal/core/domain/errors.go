package domain

import "errors"

var (
	ErrInvalidToken          = errors.New("invalid token")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrForbidden             = errors.New("forbidden")
	ErrSelfConversation      = errors.New("cannot message yourself")
	ErrRecipientUnavailable  = errors.New("recipient is unavailable")
	ErrInvalidUserID         = errors.New("invalid user id")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidMessageBody    = errors.New("invalid message body")
	ErrRateLimited           = errors.New("rate limited")
	ErrInvalidEvent          = errors.New("invalid event")
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowConsumer = errors.New("client outbound buffer full")
)
