package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"bakery-service/internal/ordering"
)

// respondError maps domain errors onto the HTTP contract: validation 400,
// not found 404, stock/conflict 409, external authority 502.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var (
		validationErr *ordering.ValidationError
		notFoundErr   *ordering.NotFoundError
		stockErr      *ordering.InsufficientStockError
		externalErr   *ordering.ExternalServiceError
	)

	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationErr.Msg})
	case errors.Is(err, ordering.ErrEmptyAllocation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no cart line resolves to a valid product"})
	case errors.As(err, &notFoundErr):
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFoundErr.Error()})
	case errors.As(err, &stockErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     stockErr.Error(),
			"product":   stockErr.ProductName,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.Is(err, ordering.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "concurrent modification, please retry"})
	case errors.As(err, &externalErr):
		log.Error("External service failure", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": externalErr.Error()})
	default:
		log.Error("Unhandled error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
