package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/observability"
	"github.com/alfanzaky/refledger/pkg/xresponse"
)

// AdminHandler exposes operator actions
type AdminHandler struct {
	adminUC     domain.AdminUsecase
	authService domain.AuthService
	roleGuard   *RoleGuard
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminUC domain.AdminUsecase, authService domain.AuthService) *AdminHandler {
	return &AdminHandler{
		adminUC:     adminUC,
		authService: authService,
		roleGuard:   NewRoleGuard(),
	}
}

// PremiumConfigRequest is the body of PUT /admin/premium-config
type PremiumConfigRequest struct {
	Enabled  bool            `json:"enabled"`
	Position int             `json:"position"`
	Amount   decimal.Decimal `json:"amount"`
}

// AssignPremiumRequest is the body of POST /admin/users/:id/premium
type AssignPremiumRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Position int             `json:"position" binding:"required"`
}

// SetTierRequest is the body of PUT /admin/users/:id/tier
type SetTierRequest struct {
	Tier string `json:"tier" binding:"required"`
}

// DepositRequest is the body of POST /admin/users/:id/deposits
type DepositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	RequestID string          `json:"request_id"`
}

// RegisterUserRequest is the body of POST /admin/users
type RegisterUserRequest struct {
	ParentInviteCode string `json:"parent_invite_code"`
	Tier             string `json:"tier"`
}

// ReconcileRequest is the body of POST /admin/ledger/reconcile. An empty
// user id reconciles every account.
type ReconcileRequest struct {
	UserID string `json:"user_id"`
}

// GetPremiumConfig returns the global premium trigger
func (h *AdminHandler) GetPremiumConfig(c *gin.Context) {
	cfg, err := h.adminUC.GetGlobalPremiumConfig(c.Request.Context())
	if err != nil {
		respondError(c, err, "admin")
		return
	}
	xresponse.Success(c, "Premium config retrieved", cfg)
}

// SetPremiumConfig replaces the global premium trigger
func (h *AdminHandler) SetPremiumConfig(c *gin.Context) {
	var req PremiumConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xresponse.ValidationError(c, err.Error())
		return
	}
	h.roleGuard.LogAccess(c, "set_premium_config", "global")

	cfg, err := h.adminUC.SetGlobalPremiumConfig(c.Request.Context(), req.Enabled, req.Position, req.Amount)
	if err != nil {
		respondError(c, err, "admin")
		return
	}
	xresponse.Success(c, "Premium config updated", cfg)
}

// AssignPremium schedules a premium product for one user
func (h *AdminHandler) AssignPremium(c *gin.Context) {
	var req AssignPremiumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xresponse.ValidationError(c, err.Error())
		return
	}
	userID := c.Param("id")
	h.roleGuard.LogAccess(c, "assign_premium", userID)

	assignment, err := h.adminUC.AssignPremium(c.Request.Context(), userID, req.Amount, req.Position)
	if err != nil {
		respondError(c, err, "admin")
		return
	}
	xresponse.Created(c, "Premium assigned", assignment)
}

// Unfreeze settles a frozen account
func (h *AdminHandler) Unfreeze(c *gin.Context) {
	userID := c.Param("id")
	h.roleGuard.LogAccess(c, "unfreeze", userID)

	change, err := h.adminUC.Unfreeze(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "admin")
		return
	}
	xresponse.Success(c, "Account unfrozen", change)
}

// CancelFreeze voids a freeze and restores the balance held before it
func (h *AdminHandler) CancelFreeze(c *gin.Context) {
	userID := c.Param("id")
	h.roleGuard.LogAccess(c, "cancel_freeze", userID)

	change, err := h.adminUC.CancelFreeze(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "admin")
		return
	}
	xresponse.Success(c, "Freeze cancelled", change)
}

// SetTier changes a user's VIP tier
func (h *AdminHandler) SetTier(c *gin.Context) {
	var req SetTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xresponse.ValidationError(c, err.Error())
		return
	}
	userID := c.Param("id")
	h.roleGuard.LogAccess(c, "set_tier", userID)

	user, err := h.adminUC.SetTier(c.Request.Context(), userID, req.Tier)
	if err != nil {
		respondError(c, err, "admin")
		return
	}
	xresponse.Success(c, "Tier updated", user)
}

// Deposit credits a user's balance
func (h *AdminHandler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xresponse.ValidationError(c, err.Error())
		return
	}
	userID := c.Param("id")
	h.roleGuard.LogAccess(c, "deposit", userID)

	change, err := h.adminUC.Deposit(c.Request.Context(), userID, req.Amount, strings.TrimSpace(req.RequestID))
	if err != nil {
		respondError(c, err, "admin")
		return
	}
	if change.Replayed {
		xresponse.Success(c, "Deposit already recorded", change)
		return
	}
	xresponse.Created(c, "Deposit recorded", change)
}

// RegisterUser creates an account and returns an access token for it
func (h *AdminHandler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xresponse.ValidationError(c, err.Error())
		return
	}

	user, err := h.adminUC.RegisterUser(c.Request.Context(), domain.RegisterRequest{
		ParentInviteCode: strings.TrimSpace(req.ParentInviteCode),
		Tier:             req.Tier,
	})
	if err != nil {
		respondError(c, err, "admin")
		return
	}

	token, err := h.authService.GenerateAccessToken(user.ID, domain.RoleUser)
	if err != nil {
		respondError(c, err, "auth")
		return
	}

	observability.LogWithFields(c, "User registered",
		logger.String("user_id", user.ID),
		logger.String("invite_code", user.InviteCode),
	)
	xresponse.Created(c, "User registered", gin.H{
		"user":         user,
		"access_token": token,
	})
}

// Reconcile rebuilds cached balances from the ledger
func (h *AdminHandler) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			xresponse.ValidationError(c, err.Error())
			return
		}
	}
	h.roleGuard.LogAccess(c, "reconcile", req.UserID)

	reports, err := h.adminUC.Reconcile(c.Request.Context(), strings.TrimSpace(req.UserID))
	if err != nil {
		respondError(c, err, "reconcile")
		return
	}
	xresponse.Success(c, "Reconciliation finished", gin.H{
		"reports": reports,
	})
}
