package gemini

import (
	"errors"
	"net/http"

	"github.com/glucogate/apperror"
	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

// classifyError wraps a provider error in the kind the gateway reports it
// under. Typed errors are checked before falling back to message matching.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	return apperror.Wrap(err, kindOf(err), "")
}

func kindOf(err error) apperror.Kind {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return apperror.KindEmptyResponse
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := kindForGRPC(apiErr.GRPCStatus().Code()); ok {
			return kind
		}
		if kind, ok := kindForHTTP(apiErr.HTTPCode()); ok {
			return kind
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if kind, ok := kindForHTTP(gErr.Code); ok {
			return kind
		}
	}

	return apperror.Classify(err)
}

func kindForGRPC(code codes.Code) (apperror.Kind, bool) {
	switch code {
	case codes.Unauthenticated, codes.PermissionDenied:
		return apperror.KindUpstreamAuth, true
	case codes.ResourceExhausted:
		return apperror.KindUpstreamQuota, true
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return apperror.KindUpstreamBadRequest, true
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return apperror.KindUnavailable, true
	default:
		return "", false
	}
}

func kindForHTTP(status int) (apperror.Kind, bool) {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperror.KindUpstreamAuth, true
	case status == http.StatusTooManyRequests:
		return apperror.KindUpstreamQuota, true
	case status == http.StatusBadRequest, status == http.StatusRequestEntityTooLarge:
		return apperror.KindUpstreamBadRequest, true
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return apperror.KindUnavailable, true
	default:
		return "", false
	}
}
