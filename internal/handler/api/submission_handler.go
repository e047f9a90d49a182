package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/xresponse"
)

// SubmissionHandler handles product submissions
type SubmissionHandler struct {
	submissionUC domain.SubmissionUsecase
	roleGuard    *RoleGuard
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(submissionUC domain.SubmissionUsecase) *SubmissionHandler {
	return &SubmissionHandler{
		submissionUC: submissionUC,
		roleGuard:    NewRoleGuard(),
	}
}

// SubmitRequest is the body of POST /submissions
type SubmitRequest struct {
	Value        decimal.Decimal `json:"value"`
	SubmissionID string          `json:"submission_id"`
}

// Submit processes a product submission for the caller
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid submission body", logger.ErrorField(err))
		xresponse.ValidationError(c, err.Error())
		return
	}

	userID, _, exists := h.roleGuard.GetCurrentUser(c)
	if !exists {
		xresponse.Unauthorized(c, "Authentication required")
		return
	}

	result, err := h.submissionUC.Submit(c.Request.Context(), domain.SubmitRequest{
		UserID:       userID,
		Value:        req.Value,
		SubmissionID: strings.TrimSpace(req.SubmissionID),
	})
	if err != nil {
		respondError(c, err, "submission")
		return
	}

	switch {
	case result.Replayed:
		xresponse.Success(c, "Submission already processed", result)
	case result.Outcome == domain.OutcomeFrozen:
		xresponse.Created(c, "Premium product: account frozen until settled", result)
	default:
		xresponse.Created(c, "Submission credited", result)
	}
}
