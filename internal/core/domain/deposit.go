// Package domain holds the deposit confirmation model: the request a member
// submits, the ticket that correlates it with the remote transaction, and the
// statuses and outcomes the workflow moves through.
package domain

import (
	"errors"
	"strings"

	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"
)

// PaymentMethod is the mobile money network a deposit is pulled from.
type PaymentMethod string

const (
	MethodMTN    PaymentMethod = "MTN"
	MethodOrange PaymentMethod = "ORANGE"
)

// DefaultMinDepositAmount is the smallest deposit accepted, in minor units.
var DefaultMinDepositAmount = decimal.NewFromInt(1000)

var validate = validator.New()

// DepositRequest is built from user input at submit time and is not modified
// once it has been sent to the payment API.
type DepositRequest struct {
	AccountID   string          `json:"accountId" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	PhoneNumber string          `json:"phoneNumber" validate:"required"`
	Method      PaymentMethod   `json:"method" validate:"required,oneof=MTN ORANGE"`
}

// Normalize trims user input and upper-cases the method.
func (r DepositRequest) Normalize() DepositRequest {
	r.AccountID = strings.TrimSpace(r.AccountID)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Method = PaymentMethod(strings.ToUpper(strings.TrimSpace(string(r.Method))))
	return r
}

// Validate checks the request locally. The returned error is always a
// VALIDATION_ERROR DomainError.
func (r DepositRequest) Validate(minAmount decimal.Decimal) error {
	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			if fe.Tag() == "oneof" {
				return NewValidationError("method", "must be one of MTN, ORANGE")
			}
			return NewValidationError(jsonFieldName(fe.Field()), "is required")
		}
		return NewValidationError("request", err.Error())
	}

	if !r.Amount.IsPositive() {
		return NewValidationError("amount", "must be greater than zero")
	}
	if r.Amount.LessThan(minAmount) {
		return NewValidationError("amount", "must be at least "+minAmount.String())
	}
	if !r.Amount.Equal(r.Amount.Truncate(0)) {
		return NewValidationError("amount", "must be a whole number of minor units")
	}
	return nil
}

func jsonFieldName(field string) string {
	switch field {
	case "AccountID":
		return "accountId"
	case "PhoneNumber":
		return "phoneNumber"
	case "Method":
		return "method"
	}
	return field
}
