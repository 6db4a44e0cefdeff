package clients

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies a remote catalog failure into a fixed set of kinds
type ErrorKind string

const (
	ErrKindDuplicate     ErrorKind = "DUPLICATE"
	ErrKindNotFound      ErrorKind = "NOT_FOUND"
	ErrKindValidation    ErrorKind = "VALIDATION"
	ErrKindQuotaExceeded ErrorKind = "QUOTA_EXCEEDED"
	ErrKindTransient     ErrorKind = "TRANSIENT"
	ErrKindUnknown       ErrorKind = "UNKNOWN"
)

// MsgDuplicateProduct is the fixed user-facing message for duplicate products.
// The UI keys on this exact phrase to offer the "already exists" action.
const MsgDuplicateProduct = "Aynı üründen var"

// APIError carries the remote platform's response for a failed call
type APIError struct {
	StatusCode int           // zero when the request never got a response
	Body       string        // raw response body, may be empty
	RetryAfter time.Duration // server-requested delay, zero when absent
	Err        error         // transport-level failure, if any
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 && e.Err != nil {
		return fmt.Sprintf("remote catalog request failed: %v", e.Err)
	}
	return fmt.Sprintf("remote catalog error (status %d): %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// duplicate markers as the platform emits them, in more than one language
var duplicateMarkers = []string{"duplicate", "already exists", "zaten var"}

var quotaMarkers = []string{"quota", "limit exceeded"}

// Classify maps any error from the remote catalog client onto exactly one
// ErrorKind plus a normalized, user-presentable message. This is the single
// place where matching on vendor error prose is allowed; rules apply in
// priority order and the first match wins.
func Classify(err error) (ErrorKind, string) {
	if err == nil {
		return ErrKindUnknown, "unknown remote catalog error"
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		// No response at all: connection refused, timeout, DNS
		return ErrKindTransient, "temporary network failure reaching the remote catalog"
	}

	body := strings.ToLower(apiErr.Body)

	switch {
	case apiErr.StatusCode == 0:
		return ErrKindTransient, "temporary network failure reaching the remote catalog"

	case apiErr.StatusCode == 404 || strings.Contains(body, "not found"):
		return ErrKindNotFound, "record not found in the remote catalog"

	case apiErr.StatusCode == 429 || containsAny(body, quotaMarkers):
		return ErrKindQuotaExceeded, "remote catalog quota exceeded"

	case apiErr.StatusCode == 400 && containsAny(body, duplicateMarkers):
		return ErrKindDuplicate, MsgDuplicateProduct

	case apiErr.StatusCode == 400:
		return ErrKindValidation, normalizeBody(apiErr.Body)

	default:
		return ErrKindUnknown, fmt.Sprintf("remote catalog rejected the request (status %d)", apiErr.StatusCode)
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// normalizeBody trims a validation body to something presentable: no raw
// JSON dumps, bounded length
func normalizeBody(body string) string {
	msg := strings.TrimSpace(body)
	if msg == "" {
		return "the remote catalog rejected the record as invalid"
	}
	if runes := []rune(msg); len(runes) > 200 {
		// Cut on a rune boundary so multibyte vendor prose stays valid UTF-8
		msg = string(runes[:200])
	}
	return msg
}
