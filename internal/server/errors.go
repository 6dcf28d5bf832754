package server

import (
	"errors"
	"net/http"

	campaigndomain "github.com/crowdvault/crowdvault/internal/campaign/domain"
	"github.com/crowdvault/crowdvault/pkg/db"
	"github.com/crowdvault/crowdvault/pkg/money"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    err.Error(),
			Message: "validation error",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, campaigndomain.ErrUnauthorized):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Code:    err.Error(),
			Message: "caller is not the campaign owner",
		}
	case errors.Is(err, campaigndomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isStateGateError(err):
		return http.StatusConflict, errorPayload{
			Type:    "state_conflict",
			Code:    err.Error(),
			Message: "operation not permitted in the campaign's current state",
		}
	case errors.Is(err, campaigndomain.ErrAlreadyClaimed),
		errors.Is(err, campaigndomain.ErrAlreadyRefunded),
		errors.Is(err, campaigndomain.ErrNoDonation):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: "conflict",
		}
	case db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, campaigndomain.ErrContention):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "contention",
			Code:    err.Error(),
			Message: "the campaign is under heavy write contention, retry",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, campaigndomain.ErrInvalidID),
		errors.Is(err, campaigndomain.ErrInvalidOwner),
		errors.Is(err, campaigndomain.ErrInvalidTitle),
		errors.Is(err, campaigndomain.ErrInvalidDescription),
		errors.Is(err, campaigndomain.ErrInvalidImage),
		errors.Is(err, campaigndomain.ErrInvalidTarget),
		errors.Is(err, campaigndomain.ErrInvalidDeadline),
		errors.Is(err, campaigndomain.ErrInvalidDonor),
		errors.Is(err, campaigndomain.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalid),
		errors.Is(err, money.ErrOverflow),
		errors.Is(err, money.ErrUnderflow):
		return true
	default:
		return false
	}
}

func isStateGateError(err error) bool {
	switch {
	case errors.Is(err, campaigndomain.ErrCampaignNotActive),
		errors.Is(err, campaigndomain.ErrCampaignNotSuccessful),
		errors.Is(err, campaigndomain.ErrCampaignNotFailed):
		return true
	default:
		return false
	}
}
