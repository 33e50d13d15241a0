package recognition

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindAuthFailure ErrorKind = "auth_failure"
	KindNetwork     ErrorKind = "network_error"
	KindUnknown     ErrorKind = "unknown"
)

// Error is the classified failure surfaced by the recognition client.
// An unclassifiable failure keeps its original message under KindUnknown;
// it is never swallowed.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("recognition: %s: %s", e.Kind, e.Message)
}

// UserMessage maps the error kind to the explanation shown to the back-office
// user on the queue entry.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindRateLimited:
		return "Serviço de reconhecimento ocupado. Tente novamente em alguns segundos."
	case KindTimeout:
		return "O documento é muito grande ou complexo para análise."
	case KindAuthFailure:
		return "Serviço de reconhecimento mal configurado. Contate o suporte."
	case KindNetwork:
		return "Falha de rede ao contatar o serviço de reconhecimento. Verifique a conectividade."
	}
	return e.Message
}

// Rate-limit and quota phrasings seen in provider responses.
var rateLimitHints = []string{"rate limit", "too many requests", "quota"}

// classify builds an Error from an HTTP status or transport error.
func classify(status int, body string, err error) *Error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Message: err.Error()}
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			if netErr.Timeout() {
				return &Error{Kind: KindTimeout, Message: err.Error()}
			}
			return &Error{Kind: KindNetwork, Message: err.Error()}
		}
		return &Error{Kind: KindNetwork, Message: err.Error()}
	}

	switch status {
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Message: body}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Kind: KindAuthFailure, Message: body}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &Error{Kind: KindTimeout, Message: body}
	}

	lower := strings.ToLower(body)
	for _, hint := range rateLimitHints {
		if strings.Contains(lower, hint) {
			return &Error{Kind: KindRateLimited, Message: body}
		}
	}

	return &Error{Kind: KindUnknown, Message: fmt.Sprintf("status %d: %s", status, body)}
}

// UserMessageFor resolves the user-facing text for any error coming out of the
// analysis step. Non-recognition errors pass their message through.
func UserMessageFor(err error) string {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.UserMessage()
	}
	return err.Error()
}
