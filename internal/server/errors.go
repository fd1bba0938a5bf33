package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/tenor/internal/payment/domain"
	plandomain "github.com/smallbiznis/tenor/internal/plan/domain"
	"go.uber.org/zap"
)

// APIError is the wire shape of every non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *APIError) Error() string { return e.Code }

var ErrNotFound = &APIError{
	Status:  http.StatusNotFound,
	Code:    "not_found",
	Message: "resource not found",
}

func invalidRequestError() *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body could not be parsed",
	}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// AbortWithError translates domain errors into API responses. Unrecognized
// errors become an opaque 500; their detail stays in the logs only.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	if mapped := mapDomainError(err); mapped != nil {
		c.AbortWithStatusJSON(mapped.Status, gin.H{"error": mapped})
		return
	}

	zap.L().Error("unhandled api error", zap.Error(err), zap.String("path", c.FullPath()))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "internal_error",
			Message: "internal error",
		},
	})
}

func mapDomainError(err error) *APIError {
	switch {
	case errors.Is(err, plandomain.ErrPlanNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "plan_not_found", Message: "financing plan not found"}
	case errors.Is(err, plandomain.ErrInvalidPlanID):
		return &APIError{Status: http.StatusBadRequest, Code: "invalid_plan_id", Message: "plan id is not valid"}
	case errors.Is(err, plandomain.ErrInvalidPlanParameters):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "invalid_plan_parameters", Message: "plan parameters are not valid"}
	case errors.Is(err, plandomain.ErrUnsupportedCadence):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "unsupported_cadence", Message: "cadence cannot be scheduled"}
	case errors.Is(err, plandomain.ErrInvalidTransition):
		return &APIError{Status: http.StatusConflict, Code: "invalid_transition", Message: "plan status does not allow this operation"}
	case errors.Is(err, plandomain.ErrDuplicatePayment):
		return &APIError{Status: http.StatusConflict, Code: "duplicate_payment", Message: "payment was already recorded"}
	case errors.Is(err, plandomain.ErrAmountExceedsBalance):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "amount_exceeds_balance", Message: "amount exceeds the remaining balance"}
	case errors.Is(err, plandomain.ErrAmountMismatch):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "amount_mismatch", Message: "amount does not match the due installment"}
	case errors.Is(err, plandomain.ErrPaymentNotSucceeded):
		return &APIError{Status: http.StatusConflict, Code: "payment_not_succeeded", Message: "payment has not succeeded at the processor"}
	case errors.Is(err, plandomain.ErrMissingPaymentMethod):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "missing_payment_method", Message: "plan has no saved payment method"}
	case errors.Is(err, paymentdomain.ErrIntentNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "intent_not_found", Message: "payment intent not found"}
	case errors.Is(err, paymentdomain.ErrInvalidAmount):
		return &APIError{Status: http.StatusUnprocessableEntity, Code: "invalid_amount", Message: "amount is not valid"}
	case errors.Is(err, paymentdomain.ErrProcessorUnavailable):
		return &APIError{Status: http.StatusBadGateway, Code: "processor_unavailable", Message: "payment processor is unavailable"}
	}
	return nil
}
