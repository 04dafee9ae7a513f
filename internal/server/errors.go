package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"dicevault/internal/counter"
	"dicevault/internal/game"
)

const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeCounterExists  = "COUNTER_EXISTS"
	codeCounterMissing = "COUNTER_NOT_FOUND"
	codeAccountInUse   = "ACCOUNT_IN_USE"
)

var codeStatus = map[string]int{
	game.CodeBetTooSmall:        fiber.StatusBadRequest,
	game.CodeInvalidBetValue:    fiber.StatusBadRequest,
	game.CodeInvalidNumber:      fiber.StatusBadRequest,
	game.CodeUnsupportedBetType: fiber.StatusBadRequest,
	game.CodeInvalidHouseEdge:   fiber.StatusBadRequest,
	game.CodeInvalidAddress:     fiber.StatusBadRequest,
	game.CodeMismatch:           fiber.StatusBadRequest,
	codeInvalidRequest:          fiber.StatusBadRequest,
	game.CodeNotInitialized:     fiber.StatusNotFound,
	game.CodeUnknownGame:        fiber.StatusNotFound,
	codeCounterMissing:          fiber.StatusNotFound,
	game.CodeAlreadyInitialized: fiber.StatusConflict,
	game.CodeConflict:           fiber.StatusConflict,
	codeCounterExists:           fiber.StatusConflict,
	codeAccountInUse:            fiber.StatusConflict,
	game.CodeInsufficientFunds:  fiber.StatusUnprocessableEntity,
	game.CodeTransferRejected:   fiber.StatusUnprocessableEntity,
	game.CodeArithmeticOverflow: fiber.StatusUnprocessableEntity,
	game.CodeQueueFull:          fiber.StatusServiceUnavailable,
	game.CodeStopped:            fiber.StatusServiceUnavailable,
	game.CodeTimeout:            fiber.StatusGatewayTimeout,
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, counter.ErrCounterExists):
		return codeCounterExists
	case errors.Is(err, counter.ErrCounterNotFound):
		return codeCounterMissing
	case errors.Is(err, counter.ErrAccountInUse):
		return codeAccountInUse
	}
	return game.ErrorCode(err)
}

func statusFor(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// errorResponse writes err as {"error", "code"} with the status its code
// maps to.
func errorResponse(c *fiber.Ctx, err error) error {
	code := errorCode(err)
	return c.Status(statusFor(code)).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
		"code":  codeInvalidRequest,
	})
}
