package space

import (
	"errors"
	"fmt"
)

// Sentinel errors for region bookkeeping and attach/detach. Callers match
// them with errors.Is; attach failures arrive wrapped in AttachError.
var (
	// ErrRegionConflict reports an insertion overlapping an occupied region.
	ErrRegionConflict = errors.New("space: overlapping region")

	// ErrTableExhausted reports a region table with no free slot.
	ErrTableExhausted = errors.New("space: region table exhausted")

	// ErrEmptyRegion reports an attempt to insert a zero-size region.
	ErrEmptyRegion = errors.New("space: empty region")

	// ErrAlreadyAttached reports a second lifetime attachment of a nested
	// space.
	ErrAlreadyAttached = errors.New("space: already attached")

	// ErrFixedAddrRequired reports a host-chosen attach into a reservation,
	// which must name its exact spot.
	ErrFixedAddrRequired = errors.New("space: fixed address required")

	// ErrOutOfRange reports a fixed attach that does not fit inside the
	// reservation.
	ErrOutOfRange = errors.New("space: outside reservation")

	// ErrMisaligned reports an address or offset that is not page-aligned.
	ErrMisaligned = errors.New("space: misaligned address or offset")

	// ErrAddressOverflow reports a region whose end would wrap past the top
	// of the address space.
	ErrAddressOverflow = errors.New("space: region wraps the address space")

	// ErrSizeExceedsBacking reports a size hint reaching past the backing
	// object.
	ErrSizeExceedsBacking = errors.New("space: size exceeds backing object")

	// ErrNestedReservation reports a reservation attached into a
	// reservation.
	ErrNestedReservation = errors.New("space: reservation inside reservation")

	// ErrClosed reports an operation on a closed space.
	ErrClosed = errors.New("space: closed")
)

// AttachError wraps every attach failure together with the request metrics
// that caused it.
type AttachError struct {
	At   Addr    // requested fixed address; 0 when host-chosen
	Size uintptr // mapping size; 0 when failure precedes size derivation
	Err  error
}

func (e *AttachError) Error() string {
	if e.At != 0 {
		return fmt.Sprintf("space: attach %d bytes at %#x: %v", e.Size, uintptr(e.At), e.Err)
	}
	return fmt.Sprintf("space: attach %d bytes: %v", e.Size, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }
