package httpapi

import (
	"errors"

	"github.com/deliverly/order-api/internal/domains/orders/application"
	"github.com/deliverly/order-api/internal/domains/orders/domain"
	"github.com/deliverly/order-api/internal/domains/orders/ports"
	sharederrors "github.com/deliverly/order-api/internal/shared/errors"
)

// orderErrorMapper translates ordering errors into problem responses.
func orderErrorMapper(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case application.IsNotFound(err):
		return sharederrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, ports.ErrConflict):
		return sharederrors.ErrConflict.WithDetail(err.Error()), true
	case errors.Is(err, ports.ErrGatewayUnavailable):
		return sharederrors.ErrUpstream.WithDetail(err.Error()), true
	case errors.Is(err, application.ErrInvalidState),
		errors.Is(err, domain.ErrNotPayable),
		errors.Is(err, domain.ErrNotCancelable),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, domain.ErrEmptyItems),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrNegativePrice):
		return sharederrors.ErrBadRequest.WithDetail(err.Error()), true
	}

	var transition *domain.InvalidTransitionError
	if errors.As(err, &transition) {
		return sharederrors.ErrBadRequest.
			WithDetail(transition.Error()).
			WithExtension("from", string(transition.From)).
			WithExtension("to", string(transition.To)), true
	}
	var forbidden *application.ForbiddenError
	if errors.As(err, &forbidden) {
		return sharederrors.ErrForbidden.
			WithDetail(forbidden.Error()).
			WithExtension("action", forbidden.Action), true
	}
	var declined *application.PaymentDeclinedError
	if errors.As(err, &declined) {
		problem := sharederrors.ErrPaymentDeclined.WithDetail(declined.Message)
		if declined.Reason != "" {
			problem = problem.WithExtension("reason", declined.Reason)
		}
		return problem, true
	}
	return sharederrors.ProblemDetail{}, false
}

// newResponder builds the problem responder used by every ordering handler.
func newResponder() *sharederrors.ChainedResponder {
	return sharederrors.NewChainedResponder("", orderErrorMapper)
}
