package game

import (
	"errors"

	"dicevault/internal/ledger"
)

var (
	ErrBetTooSmall        = errors.New("bet amount below minimum wager")
	ErrInvalidBetValue    = errors.New("invalid bet value for bet type")
	ErrInvalidNumber      = errors.New("number must be between 1 and 6")
	ErrUnsupportedBetType = errors.New("unsupported bet type")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrInvalidHouseEdge   = errors.New("house edge must be between 0 and 100")
	ErrAlreadyInitialized = errors.New("game state already initialized")
	ErrNotInitialized     = errors.New("game state not initialized")
	ErrInvalidRecord      = errors.New("invalid game state record")
	ErrUnknownGame        = errors.New("unknown game")
	ErrSettlementMismatch = errors.New("settlement does not match its inputs")
)

// Error codes returned to API clients.
const (
	CodeBetTooSmall        = "BET_TOO_SMALL"
	CodeInvalidBetValue    = "INVALID_BET_VALUE"
	CodeInvalidNumber      = "INVALID_NUMBER"
	CodeUnsupportedBetType = "UNSUPPORTED_BET_TYPE"
	CodeArithmeticOverflow = "ARITHMETIC_OVERFLOW"
	CodeInvalidHouseEdge   = "INVALID_HOUSE_EDGE"
	CodeAlreadyInitialized = "ALREADY_INITIALIZED"
	CodeNotInitialized     = "NOT_INITIALIZED"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeTransferRejected   = "TRANSFER_REJECTED"
	CodeConflict           = "CONFLICT"
	CodeUnknownGame        = "UNKNOWN_GAME"
	CodeInvalidAddress     = "INVALID_ADDRESS"
	CodeMismatch           = "SETTLEMENT_MISMATCH"
	CodeUnknown            = "UNKNOWN"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrBetTooSmall, CodeBetTooSmall},
	{ErrInvalidBetValue, CodeInvalidBetValue},
	{ErrInvalidNumber, CodeInvalidNumber},
	{ErrUnsupportedBetType, CodeUnsupportedBetType},
	{ErrArithmeticOverflow, CodeArithmeticOverflow},
	{ledger.ErrBalanceOverflow, CodeArithmeticOverflow},
	{ErrInvalidHouseEdge, CodeInvalidHouseEdge},
	{ErrAlreadyInitialized, CodeAlreadyInitialized},
	{ErrNotInitialized, CodeNotInitialized},
	{ledger.ErrInsufficientFunds, CodeInsufficientFunds},
	{ledger.ErrTransferRejected, CodeTransferRejected},
	{ledger.ErrUnauthorizedTransfer, CodeTransferRejected},
	{ledger.ErrConflict, CodeConflict},
	{ErrUnknownGame, CodeUnknownGame},
	{ledger.ErrInvalidAddress, CodeInvalidAddress},
	{ErrSettlementMismatch, CodeMismatch},
}

// ErrorCode maps an error from this package or the ledger to a stable,
// machine-readable code.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnknown
}
