package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/courier/internal/engine"
	"github.com/kode4food/courier/pkg/api"
)

var ErrInvalidJSON = errors.New("invalid JSON request")

// writeError maps engine errors onto HTTP statuses. Rejected plans carry
// their validation result so clients can show every issue at once
func writeError(c *gin.Context, err error) {
	status := errorStatus(err)
	res := api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	}
	var vr *api.ValidationResult
	if errors.As(err, &vr) {
		res.Validation = vr
	}
	c.JSON(status, res)
}

func writeBadRequest(c *gin.Context, err error) {
	writeError(c, fmt.Errorf("%w: %w", ErrInvalidJSON, err))
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidJSON),
		errors.Is(err, ErrPlanIDMismatch),
		errors.Is(err, engine.ErrEmailInvalid):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrPlanExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrPlanInvalid):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
