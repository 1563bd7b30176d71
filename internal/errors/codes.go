// Package errors provides the machine-readable error taxonomy of the lottery core.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error that did not originate in the core.
	CodeUnknown Code = "UNKNOWN"

	// Access errors
	CodeUnauthorized Code = "UNAUTHORIZED"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Lifecycle errors
	CodeInvalidState Code = "INVALID_STATE"
	CodeSalesEnded   Code = "SALES_ENDED"
	CodeNotSettled   Code = "NOT_SETTLED"

	// Input errors
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeInvalidNumber    Code = "INVALID_NUMBER"
	CodeIncorrectPayment Code = "INCORRECT_PAYMENT"

	// Ownership errors
	CodeNumberTaken Code = "NUMBER_TAKEN"
	CodeNotOwner    Code = "NOT_OWNER"
	CodeNotSeller   Code = "NOT_SELLER"
	CodeSelfTrade   Code = "SELF_TRADE"

	// Marketplace errors
	CodeAlreadyListed Code = "ALREADY_LISTED"
	CodeNotListed     Code = "NOT_LISTED"

	// Settlement and ledger errors
	CodeNotWinning          Code = "NOT_WINNING"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
)

var messages = map[Code]string{
	CodeUnknown:             "An unexpected error occurred",
	CodeUnauthorized:        "Caller is not authorized for this operation",
	CodeNotFound:            "Resource does not exist",
	CodeInvalidState:        "Lottery is not in the required state",
	CodeSalesEnded:          "Lottery sales ended",
	CodeNotSettled:          "Lottery is not settled",
	CodeInvalidArgument:     "Invalid argument",
	CodeInvalidNumber:       "Invalid ticket number",
	CodeIncorrectPayment:    "Incorrect payment amount",
	CodeNumberTaken:         "Number already taken",
	CodeNotOwner:            "Not ticket owner",
	CodeNotSeller:           "Not listing owner",
	CodeSelfTrade:           "Cannot buy your own ticket",
	CodeAlreadyListed:       "Ticket already listed",
	CodeNotListed:           "Ticket not listed",
	CodeNotWinning:          "Ticket is not a winning ticket or prize already claimed",
	CodeInsufficientBalance: "Insufficient balance",
}

// Message returns the user-facing message for the code.
func (c Code) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return messages[CodeUnknown]
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad input
	case CodeInvalidArgument,
		CodeInvalidNumber,
		CodeIncorrectPayment:
		return http.StatusBadRequest

	case CodeUnauthorized:
		return http.StatusUnauthorized

	// Caller is known but acts on something they do not hold
	case CodeNotOwner,
		CodeNotSeller:
		return http.StatusForbidden

	case CodeNotFound:
		return http.StatusNotFound

	// State doesn't allow the operation
	case CodeInvalidState,
		CodeSalesEnded,
		CodeNotSettled,
		CodeNumberTaken,
		CodeSelfTrade,
		CodeAlreadyListed,
		CodeNotListed,
		CodeNotWinning,
		CodeInsufficientBalance:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
