package interview

import "errors"

var (
	// ErrUpstream means the primary and the fallback model both failed.
	ErrUpstream = errors.New("reasoning provider unavailable")
	// ErrMalformedOutput means the model answer failed validation after cleanup.
	ErrMalformedOutput = errors.New("malformed model output")

	ErrMissingSessionID = errors.New("session_id is required")
	ErrAnswerRequired   = errors.New("session already started, an answer is required")
	ErrUnexpectedAnswer = errors.New("answer is not allowed in the initial request")
	ErrSessionCompleted = errors.New("session is already completed")
	ErrBrandingRequired = errors.New("branding phase required, complete the company profile interview first")
)
