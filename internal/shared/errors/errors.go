package errors

import "errors"

var (
	ErrConfiguration      = errors.New("invalid configuration")
	ErrMissingBotToken    = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	ErrAdapterNotReady    = errors.New("message source adapter is not ready")
	ErrChannelUnavailable = errors.New("channel unavailable")
	ErrDelivery           = errors.New("delivery failed")
	ErrLookupFailure      = errors.New("metadata lookup failed")
	ErrNotFound           = errors.New("not found")
	ErrFetchUnsupported   = errors.New("fetching history is not supported by this source")
	ErrTaskNotFound       = errors.New("task not found")
	ErrUnauthorized       = errors.New("unauthorized user")
)
