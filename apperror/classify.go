package apperror

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Message fragments that identify each upstream kind, checked in order.
var messageRules = []struct {
	kind      Kind
	fragments []string
}{
	{KindUpstreamAuth, []string{"api_key", "api key", "unauthenticated", "unauthorized", "permission_denied"}},
	{KindUpstreamQuota, []string{"429", "quota", "resource_exhausted", "rate limit"}},
	{KindUpstreamBadRequest, []string{"invalid", "bad request", "malformed", "invalid_argument"}},
	{KindUnavailable, []string{"econnrefused", "enotfound", "connection refused", "no such host", "timeout", "deadline exceeded", "unavailable", "fetch"}},
}

// Classify picks the kind for an error that carries no category of its own.
// Timeouts and network errors are recognized by type, everything else by its
// message. Unknown failures are Internal.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindUnavailable
	}

	return ClassifyMessage(err.Error())
}

// ClassifyMessage maps a provider error message to a kind.
func ClassifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	for _, rule := range messageRules {
		for _, fragment := range rule.fragments {
			if strings.Contains(lower, fragment) {
				return rule.kind
			}
		}
	}
	return KindInternal
}
