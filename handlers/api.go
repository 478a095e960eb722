package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"legal_case_ai_go/models"
	"legal_case_ai_go/services/ai"
)

// APIResponse is the uniform JSON envelope of the API.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  []models.FieldError `json:"errors,omitempty"`
	Meta    *PaginationMeta     `json:"pagination,omitempty"`
}

// PaginationMeta describes one page of a listing response.
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// NewPaginationMeta computes the page descriptor for a listing.
func NewPaginationMeta(page, limit int, total int64) *PaginationMeta {
	if limit < 1 {
		limit = 10
	}
	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}
	return &PaginationMeta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

func respondOK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func respondCreated(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

func respondMessage(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

// respondError maps domain errors onto HTTP statuses. Validation problems
// carry the full violation list so a client can fix every field at once.
func respondError(c echo.Context, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Validation failed",
			Errors:  verr.Violations,
		})
	}

	var nferr *models.NotFoundError
	if errors.As(err, &nferr) {
		return c.JSON(http.StatusNotFound, APIResponse{Success: false, Message: nferr.Error()})
	}

	var cerr *models.ConflictError
	if errors.As(err, &cerr) {
		return c.JSON(http.StatusConflict, APIResponse{Success: false, Message: cerr.Error()})
	}

	if errors.Is(err, ai.ErrUnsupportedProvider) {
		return c.JSON(http.StatusBadRequest, APIResponse{Success: false, Message: err.Error()})
	}

	var perr *ai.ProviderError
	if errors.As(err, &perr) {
		status := http.StatusBadGateway
		switch perr.Kind {
		case ai.ErrorKindAuth:
			status = http.StatusUnauthorized
		case ai.ErrorKindQuota:
			status = http.StatusTooManyRequests
		case ai.ErrorKindTimeout:
			status = http.StatusGatewayTimeout
		case ai.ErrorKindInvalidRequest:
			status = http.StatusBadRequest
		}
		return c.JSON(status, APIResponse{Success: false, Message: perr.Message})
	}

	zap.S().Errorw("request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, APIResponse{
		Success: false,
		Message: "Internal server error",
	})
}
