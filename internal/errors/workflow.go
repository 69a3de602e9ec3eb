package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies a workflow failure. Codes are part of the public API and
// must not be renamed.
type Code string

const (
	CodeInvalidLineItem      Code = "INVALID_LINE_ITEM"
	CodeInvalidTransition    Code = "INVALID_TRANSITION"
	CodeIncompleteAssignment Code = "INCOMPLETE_ASSIGNMENT"
	CodeNotFullyAssigned     Code = "NOT_FULLY_ASSIGNED"
	CodeUnknownVendor        Code = "UNKNOWN_VENDOR"
	CodeUnknownLineItem      Code = "UNKNOWN_LINE_ITEM"
	CodeUnknownPartner       Code = "UNKNOWN_PARTNER"
	CodePartnerUnavailable   Code = "PARTNER_UNAVAILABLE"
	CodeEmptyPurchaseOrder   Code = "EMPTY_PURCHASE_ORDER"
	CodeNotApproved          Code = "NOT_APPROVED"

	CodeUnknownRequest       Code = "UNKNOWN_REQUEST"
	CodeUnknownPurchaseOrder Code = "UNKNOWN_PURCHASE_ORDER"
	CodeUnknownOrder         Code = "UNKNOWN_ORDER"
	CodeUnknownAssignment    Code = "UNKNOWN_ASSIGNMENT"
	CodeLegNotReady          Code = "LEG_NOT_READY"
	CodeLegAlreadyAssigned   Code = "LEG_ALREADY_ASSIGNED"
	CodeLineFinalized        Code = "LINE_FINALIZED"
)

// Category groups codes by how a caller is expected to react.
type Category string

const (
	CategoryInvalidInput Category = "invalid_input"
	CategoryState        Category = "state"
	CategoryGating       Category = "gating"
	CategoryBadReference Category = "bad_reference"
	CategoryContention   Category = "contention"
	CategoryPrecondition Category = "precondition"
)

var categories = map[Code]Category{
	CodeInvalidLineItem:      CategoryInvalidInput,
	CodeInvalidTransition:    CategoryState,
	CodeIncompleteAssignment: CategoryGating,
	CodeNotFullyAssigned:     CategoryGating,
	CodeUnknownVendor:        CategoryBadReference,
	CodeUnknownLineItem:      CategoryBadReference,
	CodeUnknownPartner:       CategoryBadReference,
	CodePartnerUnavailable:   CategoryContention,
	CodeEmptyPurchaseOrder:   CategoryPrecondition,
	CodeNotApproved:          CategoryPrecondition,
	CodeUnknownRequest:       CategoryBadReference,
	CodeUnknownPurchaseOrder: CategoryBadReference,
	CodeUnknownOrder:         CategoryBadReference,
	CodeUnknownAssignment:    CategoryBadReference,
	CodeLegNotReady:          CategoryPrecondition,
	CodeLegAlreadyAssigned:   CategoryContention,
	CodeLineFinalized:        CategoryState,
}

// WorkflowError is returned by the orchestration services. Two workflow
// errors match under errors.Is when their codes are equal.
type WorkflowError struct {
	Code    Code
	Message string
	Details []ValidationDetail
}

func (e *WorkflowError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	return ok && t.Code == e.Code
}

func (e *WorkflowError) Category() Category {
	return categories[e.Code]
}

func NewWorkflowError(code Code, format string, args ...any) *WorkflowError {
	return &WorkflowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is.
var (
	ErrInvalidLineItem      = &WorkflowError{Code: CodeInvalidLineItem}
	ErrInvalidTransition    = &WorkflowError{Code: CodeInvalidTransition}
	ErrIncompleteAssignment = &WorkflowError{Code: CodeIncompleteAssignment}
	ErrNotFullyAssigned     = &WorkflowError{Code: CodeNotFullyAssigned}
	ErrUnknownVendor        = &WorkflowError{Code: CodeUnknownVendor}
	ErrUnknownLineItem      = &WorkflowError{Code: CodeUnknownLineItem}
	ErrUnknownPartner       = &WorkflowError{Code: CodeUnknownPartner}
	ErrPartnerUnavailable   = &WorkflowError{Code: CodePartnerUnavailable}
	ErrEmptyPurchaseOrder   = &WorkflowError{Code: CodeEmptyPurchaseOrder}
	ErrNotApproved          = &WorkflowError{Code: CodeNotApproved}
	ErrUnknownRequest       = &WorkflowError{Code: CodeUnknownRequest}
	ErrUnknownPurchaseOrder = &WorkflowError{Code: CodeUnknownPurchaseOrder}
	ErrUnknownOrder         = &WorkflowError{Code: CodeUnknownOrder}
	ErrUnknownAssignment    = &WorkflowError{Code: CodeUnknownAssignment}
	ErrLegNotReady          = &WorkflowError{Code: CodeLegNotReady}
	ErrLegAlreadyAssigned   = &WorkflowError{Code: CodeLegAlreadyAssigned}
	ErrLineFinalized        = &WorkflowError{Code: CodeLineFinalized}
)

func IsWorkflowError(err error) (*WorkflowError, bool) {
	var we *WorkflowError
	if stderrors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// IsExpected reports whether err is a routine, actionable outcome (gating or
// contention) rather than a fault or a bad reference.
func IsExpected(err error) bool {
	we, ok := IsWorkflowError(err)
	if !ok {
		return false
	}
	switch we.Category() {
	case CategoryGating, CategoryContention:
		return true
	}
	return false
}
