package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
)

// StatusError is a non-2xx answer from an HTTP dependency.
type StatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, body)
}

// Classify applies the rules every dependency shares. Context errors are
// neither retried nor counted by the breaker; transient reports the
// dependency specific failures worth retrying.
func Classify(err error, transient func(error) bool) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{}
	}
	if IsCircuitOpen(err) || (transient != nil && transient(err)) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{RecordFailure: true}
}

// ClassifyHTTP retries 408, 429 and 5xx gateway statuses plus network
// errors. Other statuses are caller mistakes and do not trip the breaker.
func ClassifyHTTP(err error) ErrorClassification {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && !RetryableStatus(statusErr.StatusCode) {
		return ErrorClassification{}
	}
	return Classify(err, func(err error) bool {
		if errors.As(err, &statusErr) {
			return true
		}
		var netErr net.Error
		return errors.As(err, &netErr)
	})
}

func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Call runs fn through the executor when one is configured and marks
// retryable failures as domain.ErrTemporary.
func Call(ctx context.Context, executor *Executor, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	var err error
	if executor != nil {
		err = executor.Execute(ctx, operation, fn, classifier)
	} else {
		err = fn(ctx)
	}
	return WrapTemporary(operation, err, classifier)
}

func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = recordOnly
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
