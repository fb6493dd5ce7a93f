// Package errors provides custom error types for the storage layer.

package errors

import (
	"fmt"
)

type (
	StatementPSQLError struct {
		Err error
	}
	ExecutionPSQLError struct {
		Err error
	}
	ScanningPSQLError struct {
		Err error
	}
	TransactionPSQLError struct {
		Err error
	}
	AlreadyExistsError struct {
		Err error
		ID  string
	}
	NotFoundError struct {
		Err error
	}
	ContextTimeoutExceededError struct {
		Err error
	}
	NotEnoughFundsError struct {
		Field string
	}
	NegativeBalanceError struct {
		Field string
	}
	InvalidStatusError struct {
		ID     string
		Status string
	}
)

func (e *StatementPSQLError) Error() string {
	return fmt.Sprintf("%s: could not compile", e.Err.Error())
}

func (e *ExecutionPSQLError) Error() string {
	return fmt.Sprintf("%s: could not execute", e.Err.Error())
}

func (e *ScanningPSQLError) Error() string {
	return fmt.Sprintf("%s: could not scan", e.Err.Error())
}

func (e *TransactionPSQLError) Error() string {
	return fmt.Sprintf("%s: could not process transaction", e.Err.Error())
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s: already exists", e.ID)
}

func (e *NotFoundError) Error() string {
	return "requested entry was not found"
}

func (e *ContextTimeoutExceededError) Error() string {
	return fmt.Sprintf("%s: context timeout exceeded", e.Err.Error())
}

func (e *NotEnoughFundsError) Error() string {
	return fmt.Sprintf("%s: not enough funds", e.Field)
}

func (e *NegativeBalanceError) Error() string {
	return fmt.Sprintf("%s: operation would drive balance negative", e.Field)
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("%s: illegal transition from status %s", e.ID, e.Status)
}
