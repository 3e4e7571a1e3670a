package status

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

var (
	ErrAlreadyDistributed     = errors.New("distribution: already distributed")
	ErrDistributionInProgress = errors.New("distribution: in progress by another worker")
	ErrNoRevenue              = errors.New("distribution: no completed bookings")
	ErrSweepLocked            = errors.New("distribution: sweep already running")
)

var (
	ErrAlreadyCancelled      = errors.New("ticket: already cancelled")
	ErrBookingNotPaid        = errors.New("booking: payment not completed")
	ErrInsufficientInventory = errors.New("inventory: insufficient quantity")
)

var (
	ErrInsufficientFunds    = errors.New("wallet: insufficient funds")
	ErrInvalidAmount        = errors.New("wallet: amount must be positive")
	ErrInvalidType          = errors.New("wallet: transaction type not allowed")
	ErrDuplicateTransaction = errors.New("wallet: duplicate transaction reference")
	ErrConflict             = errors.New("concurrent modification")
)

// ErrInconsistentState marks a multi-step operation that failed after an earlier
// step already committed. Callers must not retry blindly.
var ErrInconsistentState = errors.New("inconsistent state")

// InconsistentStateError carries what was committed before the failing stage.
type InconsistentStateError struct {
	Operation string
	Stage     string
	Refs      map[string]string
	Err       error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s: %s failed after partial commit %v: %v", e.Operation, e.Stage, e.Refs, e.Err)
}

func (e *InconsistentStateError) Unwrap() []error {
	return []error{ErrInconsistentState, e.Err}
}

// IsExpected reports whether err is a business outcome rather than a failure.
func IsExpected(err error) bool {
	if err == nil || errors.Is(err, ErrInconsistentState) {
		return false
	}
	for _, target := range []error{
		ErrNotFound,
		ErrForbidden,
		ErrAlreadyDistributed,
		ErrDistributionInProgress,
		ErrNoRevenue,
		ErrAlreadyCancelled,
		ErrBookingNotPaid,
		ErrInsufficientFunds,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
