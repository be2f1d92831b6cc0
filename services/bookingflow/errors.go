package bookingflow

import "fmt"

// StaleAvailabilityError is returned when a selected slot does not come
// from the most recent availability fetch. Recoverable by refetching.
type StaleAvailabilityError struct {
	SlotID string
}

func (e *StaleAvailabilityError) Error() string {
	return fmt.Sprintf("slot %s is not from the latest availability result", e.SlotID)
}

// OperationInProgressError rejects a duplicate request while the same kind
// of request is already in flight. Recoverable by waiting.
type OperationInProgressError struct {
	Op string
}

func (e *OperationInProgressError) Error() string {
	return fmt.Sprintf("%s already in progress", e.Op)
}

// BookingFailedError is terminal for one submission attempt. The draft is
// preserved so the user can retry without re-entering data.
type BookingFailedError struct {
	Message string
	Err     error
}

func (e *BookingFailedError) Error() string {
	return fmt.Sprintf("booking failed: %s", e.Message)
}

func (e *BookingFailedError) Unwrap() error { return e.Err }
