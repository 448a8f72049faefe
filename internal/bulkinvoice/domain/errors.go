package domain

import "errors"

var (
	ErrInvalidOrganization    = errors.New("invalid_organization")
	ErrInvalidID              = errors.New("invalid_id")
	ErrSessionNotFound        = errors.New("session_not_found")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrInvalidThreshold       = errors.New("invalid_threshold")
	ErrInvalidOvertimePolicy  = errors.New("invalid_overtime_policy")
	ErrInvalidDateRange       = errors.New("invalid_date_range")
	ErrInvalidDueDate         = errors.New("invalid_due_date")
	ErrCustomerNotFound       = errors.New("customer_not_found")
	ErrLineItemNotFound       = errors.New("line_item_not_found")
	ErrNotSelectable          = errors.New("not_selectable")
	ErrEntriesAlreadyInvoiced = errors.New("entries_already_invoiced")
	ErrCustomerLocked         = errors.New("customer_locked")
	ErrNoResults              = errors.New("no_results")
	ErrDuplicateInvoiceNumber = errors.New("duplicate_invoice_number")
)
