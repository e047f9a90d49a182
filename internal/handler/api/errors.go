package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/observability"
	"github.com/alfanzaky/refledger/pkg/xresponse"
)

// respondError maps domain error kinds onto the response envelope. Unknown
// errors are recorded as system errors of component.
func respondError(c *gin.Context, err error, component string) {
	switch {
	case errors.Is(err, domain.ErrInvalidValue):
		xresponse.Error(c, http.StatusBadRequest, xresponse.ErrCodeInvalidValue, err.Error())
	case errors.Is(err, domain.ErrInvalidPremiumConfig):
		xresponse.Error(c, http.StatusBadRequest, xresponse.ErrCodeInvalidPremiumConfig, err.Error())
	case errors.Is(err, domain.ErrInvalidTier):
		xresponse.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrUnknownUser):
		xresponse.UserNotFound(c, "User account not found")
	case errors.Is(err, domain.ErrSubmissionNotFound):
		xresponse.NotFound(c, "Submission not found")
	case errors.Is(err, domain.ErrInsufficientBalance):
		xresponse.InsufficientBalance(c, "Insufficient balance")
	case errors.Is(err, domain.ErrBelowMinimumBalance):
		xresponse.Error(c, http.StatusUnprocessableEntity, xresponse.ErrCodeBelowMinimumBalance, "Balance below tier minimum")
	case errors.Is(err, domain.ErrSubmissionLimitReached):
		xresponse.Error(c, http.StatusUnprocessableEntity, xresponse.ErrCodeSubmissionLimit, "Submission limit reached for this period")
	case errors.Is(err, domain.ErrAccountFrozen):
		xresponse.AccountFrozen(c, "Account is frozen until the premium is settled")
	case errors.Is(err, domain.ErrNotFrozen):
		xresponse.Error(c, http.StatusConflict, xresponse.ErrCodeNotFrozen, "Account is not frozen")
	case errors.Is(err, domain.ErrLedgerConflict), errors.Is(err, domain.ErrInviteCodeTaken):
		xresponse.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrGraphCycle):
		observability.RecordSystemError(c, "referral_cycle", component, err)
		xresponse.Error(c, http.StatusConflict, xresponse.ErrCodeReferralCycle, "Referral chain is inconsistent")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		xresponse.ServiceUnavailable(c, "Account is busy, retry later")
	default:
		observability.RecordSystemError(c, "internal", component, err)
		xresponse.InternalServerError(c, "Internal server error")
	}
}
