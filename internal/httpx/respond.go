package httpx

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/renthavenhq/renthaven/internal/apperr"
)

// OK writes the standard success envelope.
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

// Created writes the standard success envelope with a 201.
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": data})
}

// Fail maps a business error to its HTTP status and writes the standard
// failure envelope. Internal errors never leak their wrapped cause.
func Fail(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	msg := err.Error()
	if kind == apperr.KindInternal {
		c.Logger().Error(err)
		msg = "internal error"
	}
	return c.JSON(status(kind), echo.Map{"success": false, "error": msg})
}

func status(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindStateConflict,
		apperr.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidEscrowState:
		return http.StatusConflict
	case apperr.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
