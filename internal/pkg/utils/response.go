package utils

import (
	stderrors "errors"

	"github.com/gofiber/fiber/v2"

	"github.com/siting-service/internal/pkg/errors"
)

type SuccessResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Error *errors.AppError `json:"error"`
}

type Meta struct {
	TimeMSec float64 `json:"time_ms,omitempty"`
}

func SendSuccess(c *fiber.Ctx, data interface{}, meta *Meta) error {
	return c.JSON(SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

// StatusOf сопоставляет категорию ошибки HTTP-статусу
func StatusOf(err *errors.AppError) int {
	switch err.Kind {
	case errors.KindConfiguration:
		return fiber.StatusBadRequest
	case errors.KindDataIntegrity, errors.KindUnreachableEntity:
		return fiber.StatusUnprocessableEntity
	case errors.KindInfrastructure, errors.KindSolverUnavailable:
		return fiber.StatusServiceUnavailable
	case errors.KindSolverTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func SendError(c *fiber.Ctx, err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return c.Status(StatusOf(appErr)).JSON(ErrorResponse{Error: appErr})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: errors.ErrInternal.Withf("%s", err.Error()),
	})
}
