package jury

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Juror is one independent model consulted during phase 3
type Juror interface {
	// Name identifies the juror in tallies and transcripts
	Name() string

	// Deliberate sends the prompt and returns the raw model output
	Deliberate(ctx context.Context, prompt string) (string, error)
}

// systemPrompt is shared by every provider
const systemPrompt = "You are an impartial judge verifying whether a cited source supports a claim. " +
	"Answer only with the requested JSON object."

// StatusError is returned when a provider answers with a non-success HTTP status
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Code, e.Message)
}

// IsRetryable reports whether err is a transient failure worth retrying:
// rate limiting, server errors, timeouts and dropped connections. Parse
// failures and client errors are never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.Code)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}
