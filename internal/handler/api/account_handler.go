package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/xresponse"
)

// AccountHandler serves the caller's own balance, earnings and history
type AccountHandler struct {
	accountUC domain.AccountUsecase
	roleGuard *RoleGuard
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountUC domain.AccountUsecase) *AccountHandler {
	return &AccountHandler{
		accountUC: accountUC,
		roleGuard: NewRoleGuard(),
	}
}

// WithdrawRequest is the body of POST /withdrawals
type WithdrawRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	RequestID string          `json:"request_id"`
}

// GetBalance returns the caller's account summary
func (h *AccountHandler) GetBalance(c *gin.Context) {
	userID, _, exists := h.roleGuard.GetCurrentUser(c)
	if !exists {
		xresponse.Unauthorized(c, "Authentication required")
		return
	}

	summary, err := h.accountUC.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "account")
		return
	}
	xresponse.Success(c, "Balance retrieved", summary)
}

// GetReferralEarnings returns commissions the caller received from downlines
func (h *AccountHandler) GetReferralEarnings(c *gin.Context) {
	userID, _, exists := h.roleGuard.GetCurrentUser(c)
	if !exists {
		xresponse.Unauthorized(c, "Authentication required")
		return
	}

	earnings, err := h.accountUC.GetReferralEarnings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "account")
		return
	}
	xresponse.Success(c, "Referral earnings retrieved", earnings)
}

// GetLedger returns a page of the caller's ledger entries
func (h *AccountHandler) GetLedger(c *gin.Context) {
	userID, _, exists := h.roleGuard.GetCurrentUser(c)
	if !exists {
		xresponse.Unauthorized(c, "Authentication required")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.accountUC.GetLedger(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err, "account")
		return
	}
	xresponse.Success(c, "Ledger retrieved", gin.H{
		"entries": entries,
		"page":    page,
		"limit":   limit,
	})
}

// Withdraw debits the caller's balance
func (h *AccountHandler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid withdrawal body", logger.ErrorField(err))
		xresponse.ValidationError(c, err.Error())
		return
	}

	userID, _, exists := h.roleGuard.GetCurrentUser(c)
	if !exists {
		xresponse.Unauthorized(c, "Authentication required")
		return
	}
	h.roleGuard.LogAccess(c, "withdraw", req.Amount.String())

	change, err := h.accountUC.Withdraw(c.Request.Context(), userID, req.Amount, strings.TrimSpace(req.RequestID))
	if err != nil {
		respondError(c, err, "withdrawal")
		return
	}
	if change.Replayed {
		xresponse.Success(c, "Withdrawal already recorded", change)
		return
	}
	xresponse.Created(c, "Withdrawal recorded", change)
}
