package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching. Each typed error below unwraps to one of them.
var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOverReceipt         = errors.New("over receipt")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrMembershipConflict  = errors.New("group membership conflict")
	ErrNegativeQuantity    = errors.New("quantity must be positive")
	ErrMissingPricing      = errors.New("no active supplier pricing")
	ErrCoreAlreadyReturned = errors.New("core already returned")
	ErrNoCore              = errors.New("line has no core charge")
	ErrOrderNotEditable    = errors.New("purchase order cannot be edited in this status")
	ErrEmptyOrder          = errors.New("purchase order has no lines")
	ErrInvalidInput        = errors.New("invalid input")
)

// validationError carries a caller-facing message and matches ErrInvalidInput.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrInvalidInput }

func invalidInput(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockError is returned by Consume when the layers of a part hold
// fewer units than requested. Nothing is consumed.
type InsufficientStockError struct {
	PartNumber string
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for part %s: requested %d, available %d",
		e.PartNumber, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// OverReceiptError is returned when a delivery would push a line past its ordered quantity.
type OverReceiptError struct {
	LineID    int
	Ordered   int
	Received  int
	Delivered int
}

func (e *OverReceiptError) Error() string {
	return fmt.Sprintf("PO line %d: would receive %d but only %d ordered (already received %d)",
		e.LineID, e.Received+e.Delivered, e.Ordered, e.Received)
}

func (e *OverReceiptError) Unwrap() error { return ErrOverReceipt }

type InvalidTransitionError struct {
	OrderID int
	From    POStatus
	To      POStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("purchase order %d: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// GroupMembershipConflictError lists the parts that already belong to another group.
type GroupMembershipConflictError struct {
	GroupID int
	Parts   []string
}

func (e *GroupMembershipConflictError) Error() string {
	return fmt.Sprintf("parts already belong to another cross-reference group: %s",
		strings.Join(e.Parts, ", "))
}

func (e *GroupMembershipConflictError) Unwrap() error { return ErrMembershipConflict }

type NegativeQuantityError struct {
	Field    string
	Quantity int
}

func (e *NegativeQuantityError) Error() string {
	return fmt.Sprintf("%s must be positive, got %d", e.Field, e.Quantity)
}

func (e *NegativeQuantityError) Unwrap() error { return ErrNegativeQuantity }

func requirePositive(field string, qty int) error {
	if qty <= 0 {
		return &NegativeQuantityError{Field: field, Quantity: qty}
	}
	return nil
}
