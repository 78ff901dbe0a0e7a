package platform

import (
	"errors"
	"fmt"
	"time"
)

// AuthError means the session is missing, expired, or rejected. It is never
// retried automatically; the user has to log in again.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication required for %s: %v", e.Username, e.Err)
	}
	return fmt.Sprintf("authentication required for %s", e.Username)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError means the platform refused the request due to throttling.
// Callers should back off before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by platform: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// NetworkError covers transport failures and timeouts. Retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MediaError means the post's media could not be retrieved or is unusable.
// Unrecoverable for that post.
type MediaError struct {
	MediaID string
	Err     error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media %s unavailable: %v", e.MediaID, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

// UploadError means the upload was rejected by the platform for reasons
// other than auth or throttling. Unrecoverable for that target.
type UploadError struct {
	Username string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s rejected: %v", e.Username, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Classification helpers for callers deciding retry policy.

func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsRateLimit(err error) bool {
	var e *RateLimitError
	return errors.As(err, &e)
}

func IsNetwork(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

func IsMedia(err error) bool {
	var e *MediaError
	return errors.As(err, &e)
}

func IsUpload(err error) bool {
	var e *UploadError
	return errors.As(err, &e)
}

// Retryable reports whether err may succeed on a later attempt.
func Retryable(err error) bool {
	return IsRateLimit(err) || IsNetwork(err)
}
