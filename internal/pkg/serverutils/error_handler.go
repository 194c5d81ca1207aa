package serverutils

import (
	"errors"

	"ai-knowledge-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error kind to the HTTP status the API reports for it.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindUnsupportedFormat, apperror.KindParse, apperror.KindNoOcrEngine:
		return fiber.StatusBadRequest
	case apperror.KindAccessDenied:
		return fiber.StatusForbidden
	case apperror.KindTaskNotFound:
		return fiber.StatusNotFound
	case apperror.KindTaskConflict:
		return fiber.StatusConflict
	case apperror.KindRetryExhausted, apperror.KindOcrParse:
		return fiber.StatusUnprocessableEntity
	case apperror.KindTimeout:
		return fiber.StatusGatewayTimeout
	case apperror.KindOcrEngineUnavailable, apperror.KindEmbeddingModel, apperror.KindVectorStore:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func ErrorHandlerMiddleware() fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}
