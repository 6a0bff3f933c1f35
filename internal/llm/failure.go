package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FailureKind classifies provider errors so callers branch on the kind,
// never on transport error identity.
type FailureKind int

const (
	KindOther FailureKind = iota
	KindInvalidKey
	KindPermissionDenied
	KindRateLimited
	KindTransient
)

func (k FailureKind) String() string {
	switch k {
	case KindInvalidKey:
		return "invalid-key"
	case KindPermissionDenied:
		return "permission-denied"
	case KindRateLimited:
		return "rate-limited"
	case KindTransient:
		return "transient"
	default:
		return "other"
	}
}

type Failure struct {
	Kind    FailureKind
	Status  int
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("provider failure (%s, status %d): %s", f.Kind, f.Status, f.Message)
}

// Classify maps any error returned by a provider call onto the taxonomy.
func Classify(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindTransient
	}
	return classifyText(err.Error())
}

func classifyStatus(status int, body string) FailureKind {
	switch {
	case status == 401:
		return KindInvalidKey
	case status == 403:
		return KindPermissionDenied
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	}
	return classifyText(body)
}

func classifyText(s string) FailureKind {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "invalid api key") || strings.Contains(s, "invalid_api_key") || strings.Contains(s, "authentication_error"):
		return KindInvalidKey
	case strings.Contains(s, "permission"):
		return KindPermissionDenied
	case strings.Contains(s, "rate limit") || strings.Contains(s, "rate_limit"):
		return KindRateLimited
	case strings.Contains(s, "timeout") || strings.Contains(s, "overloaded") || strings.Contains(s, "connection"):
		return KindTransient
	}
	return KindOther
}

// IsInternal reports whether the provider signalled an internal server
// error, the one case the transcription path retries.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Status >= 500 || strings.Contains(f.Message, "internal_server_error")
	}
	return strings.Contains(err.Error(), "internal_server_error")
}
