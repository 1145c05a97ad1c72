package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"studybot/internal/pkg/circuitbreaker"
)

// Kind classifies a failure of an external model or index service.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindRateLimited
	KindQuotaExceeded
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

var (
	ErrAuth               = errors.New("service authentication failed")
	ErrRateLimited        = errors.New("service rate limit reached")
	ErrQuotaExceeded      = errors.New("service quota exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrEmptyInput         = errors.New("input text is empty")
	ErrMalformedResponse  = errors.New("malformed service response")
)

// ServiceError is returned by every client that talks to an outside service.
// It matches both the underlying error and the sentinel of its Kind with errors.Is.
type ServiceError struct {
	Service    string
	Kind       Kind
	StatusCode int
	Err        error
}

func NewServiceError(service string, kind Kind, err error) *ServiceError {
	return &ServiceError{Service: service, Kind: kind, Err: err}
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Service, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() []error {
	if s := sentinel(e.Kind); s != nil {
		return []error{e.Err, s}
	}
	return []error{e.Err}
}

// KindName feeds the outcome label of external call metrics.
func (e *ServiceError) KindName() string {
	return e.Kind.String()
}

// Transient reports whether repeating the call might succeed.
func (e *ServiceError) Transient() bool {
	return e.Kind == KindRateLimited || e.Kind == KindUnavailable
}

func sentinel(k Kind) error {
	switch k {
	case KindAuth:
		return ErrAuth
	case KindRateLimited:
		return ErrRateLimited
	case KindQuotaExceeded:
		return ErrQuotaExceeded
	case KindUnavailable:
		return ErrServiceUnavailable
	}
	return nil
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func IsTransient(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return false
}

// Classify wraps err into a ServiceError for the named service.
func Classify(service string, err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}

	out := &ServiceError{Service: service, Kind: KindUnknown, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, circuitbreaker.ErrCircuitOpen),
		errors.Is(err, circuitbreaker.ErrTooManyRequests):
		out.Kind = KindUnavailable
	case errors.Is(err, context.Canceled):
		out.Kind = KindUnknown
	case errors.As(err, &apiErr):
		out.StatusCode = apiErr.HTTPStatusCode
		out.Kind = kindFromStatus(apiErr.HTTPStatusCode, apiCode(apiErr)+" "+apiErr.Message)
	case errors.As(err, &reqErr):
		out.StatusCode = reqErr.HTTPStatusCode
		out.Kind = kindFromStatus(reqErr.HTTPStatusCode, reqErr.Error())
	case errors.As(err, &netErr):
		out.Kind = KindUnavailable
	default:
		out.Kind = kindFromMessage(err.Error())
	}
	return out
}

func apiCode(e *openai.APIError) string {
	if e.Code == nil {
		return e.Type
	}
	return fmt.Sprint(e.Code)
}

func kindFromStatus(status int, detail string) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		if strings.Contains(strings.ToLower(detail), "quota") {
			return KindQuotaExceeded
		}
		return KindRateLimited
	case status == http.StatusRequestTimeout || status >= 500:
		return KindUnavailable
	case status == 0:
		return kindFromMessage(detail)
	}
	return KindUnknown
}

func kindFromMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"):
		return KindAuth
	case strings.Contains(msg, "quota"):
		return KindQuotaExceeded
	case strings.Contains(msg, "rate limit"):
		return KindRateLimited
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "unavailable"):
		return KindUnavailable
	}
	return KindUnknown
}
