package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a ledger failure so callers can branch without matching
// message text.
type Kind int

const (
	// KindValidation means the input was malformed or out of range. No state
	// was touched.
	KindValidation Kind = iota + 1
	// KindNotFound means a referenced account does not exist. No state was
	// touched.
	KindNotFound
	// KindBusinessRule means the operation violated a ledger rule such as
	// insufficient funds or an already-claimed reward. No state was touched.
	KindBusinessRule
	// KindTransient means lock contention or a timeout aborted the operation.
	// Reads, pay, deposit and withdraw are safe to retry; a daily claim should
	// be re-checked first.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "business_rule"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

// Code identifies the specific failure within a Kind.
type Code string

const (
	CodeInvalidAmount     Code = "INVALID_AMOUNT"
	CodeInvalidRecipient  Code = "INVALID_RECIPIENT"
	CodeSenderNotFound    Code = "SENDER_NOT_FOUND"
	CodeRecipientNotFound Code = "RECIPIENT_NOT_FOUND"
	CodeAccountNotFound   Code = "ACCOUNT_NOT_FOUND"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeAlreadyClaimed    Code = "ALREADY_CLAIMED"
	CodeContention        Code = "CONTENTION"
)

// Error is the failure type returned by every ledger operation.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	// RetryAfter is set for AlreadyClaimed: time remaining until the next
	// reset boundary opens a new claim period.
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// AsError unwraps err into a *Error if one is in the chain.
func AsError(err error) (*Error, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// IsTransient reports whether err is a retryable contention failure.
func IsTransient(err error) bool {
	le, ok := AsError(err)
	return ok && le.Kind == KindTransient
}

func invalidAmount(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidAmount, Message: fmt.Sprintf(format, args...)}
}

func notFound(code Code, accountID string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf("account %s does not exist", accountID)}
}

func insufficientFunds(balance, amount int64) *Error {
	return &Error{
		Kind:    KindBusinessRule,
		Code:    CodeInsufficientFunds,
		Message: fmt.Sprintf("balance %d is less than %d", balance, amount),
	}
}

func alreadyClaimed(remaining time.Duration) *Error {
	hours := int(remaining.Hours())
	minutes := int(remaining.Minutes()) % 60
	return &Error{
		Kind:       KindBusinessRule,
		Code:       CodeAlreadyClaimed,
		Message:    fmt.Sprintf("daily reward already claimed, next claim in %dh %dm", hours, minutes),
		RetryAfter: remaining,
	}
}

func contention(op string, err error) *Error {
	return &Error{Kind: KindTransient, Code: CodeContention, Message: op + " aborted by lock contention", cause: err}
}
