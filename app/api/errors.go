package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"ragify/types"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	if apiError, ok := err.(Error); ok {
		return c.Status(apiError.Code).JSON(apiError)
	}
	if valError, ok := err.(ValidationError); ok {
		return c.Status(valError.Status).JSON(valError)
	}

	var pipeErr *types.PipelineError
	if errors.As(err, &pipeErr) {
		apiError := NewError(statusForKind(pipeErr.Kind), pipeErr.Message)
		if apiError.Code >= fiber.StatusInternalServerError {
			log.Printf("[API] Request failed (%s): %v", pipeErr.Kind, err)
		}
		return c.Status(apiError.Code).JSON(apiError)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	log.Printf("[API] Request failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(NewError(fiber.StatusInternalServerError, "internal server error"))
}

// statusForKind maps pipeline failure kinds onto HTTP statuses. Caller
// mistakes are 4xx, broken or missing collaborators are 5xx.
func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.ErrInvalidArgument, types.ErrInvalidConversation:
		return fiber.StatusBadRequest
	case types.ErrNotFound:
		return fiber.StatusNotFound
	case types.ErrUnsupportedFormat:
		return fiber.StatusUnsupportedMediaType
	case types.ErrEmptyDocument, types.ErrNoSources:
		return fiber.StatusUnprocessableEntity
	case types.ErrDependencyMissing, types.ErrModelUnavailable, types.ErrVectorStoreUnavailable:
		return fiber.StatusServiceUnavailable
	case types.ErrEmptyEmbedding, types.ErrEmptyDimension, types.ErrEmbeddingCountMismatch,
		types.ErrDimensionMismatch, types.ErrMissingVector, types.ErrVectorStoreRequest:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrConflict(msg string) Error {
	return Error{
		Code:    fiber.StatusConflict,
		Message: msg,
	}
}
