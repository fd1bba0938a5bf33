package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tenor/internal/money"
	plandomain "github.com/smallbiznis/tenor/internal/plan/domain"
)

type createPlanRequest struct {
	OwnerID               string    `json:"owner_id"`
	OrderID               string    `json:"order_id"`
	Currency              string    `json:"currency"`
	TotalAmountCents      int64     `json:"total_amount_cents"`
	DownPaymentCents      int64     `json:"down_payment_cents"`
	Cadence               string    `json:"cadence"`
	TermCount             int       `json:"term_count"`
	AnchorDate            time.Time `json:"anchor_date"`
	SavedPaymentMethodRef string    `json:"saved_payment_method_ref"`
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		AbortWithError(c, newValidationError("owner_id", "required", "owner_id is required"))
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		AbortWithError(c, newValidationError("order_id", "required", "order_id is required"))
		return
	}

	resp, err := s.planSvc.Create(c.Request.Context(), plandomain.CreateRequest{
		OwnerID:               strings.TrimSpace(req.OwnerID),
		OrderID:               strings.TrimSpace(req.OrderID),
		Currency:              strings.TrimSpace(req.Currency),
		TotalAmountCents:      req.TotalAmountCents,
		DownPaymentCents:      req.DownPaymentCents,
		Cadence:               money.Cadence(strings.ToUpper(strings.TrimSpace(req.Cadence))),
		TermCount:             req.TermCount,
		AnchorDate:            req.AnchorDate,
		SavedPaymentMethodRef: strings.TrimSpace(req.SavedPaymentMethodRef),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetPlan(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, newValidationError("id", "missing_id", "plan id is required"))
		return
	}

	resp, err := s.planSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type principalIntentRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

func (s *Server) CreatePrincipalIntent(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, newValidationError("id", "missing_id", "plan id is required"))
		return
	}

	var req principalIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.AmountCents <= 0 {
		AbortWithError(c, newValidationError("amount_cents", "invalid_amount", "amount_cents must be positive"))
		return
	}

	resp, err := s.planSvc.CreatePrincipalIntent(c.Request.Context(), id, req.AmountCents)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type confirmPrincipalRequest struct {
	ProcessorReference string `json:"processor_reference"`
}

func (s *Server) ConfirmPrincipalPayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, newValidationError("id", "missing_id", "plan id is required"))
		return
	}

	var req confirmPrincipalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.ProcessorReference) == "" {
		AbortWithError(c, newValidationError("processor_reference", "required", "processor_reference is required"))
		return
	}

	resp, err := s.planSvc.ConfirmPrincipalPayment(c.Request.Context(), id, strings.TrimSpace(req.ProcessorReference))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) PausePlan(c *gin.Context) {
	s.transition(c, s.planSvc.Pause)
}

func (s *Server) ResumePlan(c *gin.Context) {
	s.transition(c, s.planSvc.Resume)
}

func (s *Server) CancelPlan(c *gin.Context) {
	s.transition(c, s.planSvc.Cancel)
}

func (s *Server) transition(c *gin.Context, apply func(ctx context.Context, id string) (*plandomain.Response, error)) {
	id := c.Param("id")
	if id == "" {
		AbortWithError(c, newValidationError("id", "missing_id", "plan id is required"))
		return
	}

	resp, err := apply(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
