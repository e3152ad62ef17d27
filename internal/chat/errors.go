package chat

import "errors"

var (
	// ErrChatNotFound is returned by operations that require an existing chat
	// (fork, duplicate, updates). Plain lookups report absence as a nil result.
	ErrChatNotFound = errors.New("chat not found")

	// ErrMessageNotFound is returned by ForkChat when the pivot message id is
	// not part of the chat's transcript.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidTimestamp rejects caller-supplied timestamps that do not parse
	// as RFC 3339 dates.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrEmptyDescription rejects blank chat descriptions.
	ErrEmptyDescription = errors.New("description must not be empty")

	// ErrMissingChatID rejects upserts without a primary id.
	ErrMissingChatID = errors.New("chat id is required")

	// ErrEncoding marks malformed stored JSON.
	ErrEncoding = errors.New("encoding error")
)
