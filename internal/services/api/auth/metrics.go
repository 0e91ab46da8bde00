package auth

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/NordCoder/Reelpass/internal/apperr"
)

var authOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_operations_total",
	Help: "Auth operations by outcome",
}, []string{"op", "outcome"})

// observe records the outcome of op. Call it deferred with a pointer to the
// named error result.
func observe(op string, err *error) {
	authOps.WithLabelValues(op, outcome(*err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var ae *apperr.AppError
	if !errors.As(err, &ae) {
		return "error"
	}
	switch ae.Code {
	case apperr.CodeUnauthenticated:
		return "denied"
	case apperr.CodeInternal, apperr.CodeUnknown:
		return "error"
	default:
		return "rejected"
	}
}
