package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/extsync/internal/domain/marketplace"
	"github.com/GriffinCanCode/extsync/internal/shared/faults"
)

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, marketplace.ErrNotInCatalog):
		return http.StatusNotFound
	case errors.Is(err, marketplace.ErrEmptyToken):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch faults.KindOf(err) {
	case faults.KindAuth:
		return http.StatusUnauthorized
	case faults.KindConfig:
		return http.StatusPreconditionFailed
	case faults.KindTransport:
		return http.StatusBadGateway
	case faults.KindParse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error": err.Error(),
		"kind":  faults.KindOf(err).String(),
	})
}
