package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSlot   = errors.New("unknown slot")
	ErrOccupantBound = errors.New("occupant already holds a slot")
)

// AlreadyOccupiedError is returned when a bound slot is occupied again.
// It means the mutation discipline was broken somewhere.
type AlreadyOccupiedError struct {
	SlotID     string
	OccupantID string
}

func (e *AlreadyOccupiedError) Error() string {
	return fmt.Sprintf("slot %s is already occupied by %s", e.SlotID, e.OccupantID)
}

// NotOccupiedError is returned when a free slot is released.
type NotOccupiedError struct {
	SlotID string
}

func (e *NotOccupiedError) Error() string {
	return fmt.Sprintf("slot %s is not occupied", e.SlotID)
}

// InvalidAdmissionError rejects a request the submitter can correct and resubmit.
type InvalidAdmissionError struct {
	OccupantID string
	Reason     string
	// Retryable marks rejections caused by current occupancy; the same request may succeed later.
	Retryable bool
}

func (e *InvalidAdmissionError) Error() string {
	if e.OccupantID == "" {
		return "invalid admission: " + e.Reason
	}
	return fmt.Sprintf("invalid admission for %s: %s", e.OccupantID, e.Reason)
}

func invalidAdmission(occupantID, format string, args ...any) *InvalidAdmissionError {
	return &InvalidAdmissionError{OccupantID: occupantID, Reason: fmt.Sprintf(format, args...)}
}

func busy(occupantID, format string, args ...any) *InvalidAdmissionError {
	e := invalidAdmission(occupantID, format, args...)
	e.Retryable = true
	return e
}

// IsInvalidAdmission reports whether err is a recoverable input error.
func IsInvalidAdmission(err error) bool {
	var target *InvalidAdmissionError
	return errors.As(err, &target)
}
