package detour

import (
	"errors"
	"fmt"
)

type DtStatus uint32

const (
	// High level status.
	DT_FAILURE     DtStatus = 1 << 31 // Operation failed.
	DT_SUCCESS     DtStatus = 1 << 30 // Operation succeed.
	DT_IN_PROGRESS DtStatus = 1 << 29 // Operation still in progress.

	// Detail information for status.
	DT_STATUS_DETAIL_MASK DtStatus = 0x0ffffff
	DT_WRONG_MAGIC        DtStatus = 1 << 0 // Input data is not recognized.
	DT_WRONG_VERSION      DtStatus = 1 << 1 // Input data is in wrong version.
	DT_OUT_OF_MEMORY      DtStatus = 1 << 2 // Operation ran out of memory.
	DT_INVALID_PARAM      DtStatus = 1 << 3 // An input parameter was invalid.
	DT_BUFFER_TOO_SMALL   DtStatus = 1 << 4 // Result buffer for the query was too small to store all results.
	DT_OUT_OF_NODES       DtStatus = 1 << 5 // Query ran out of nodes during search.
	DT_PARTIAL_RESULT     DtStatus = 1 << 6 // Query did not reach the end location, returning best guess.
)

// Succeed returns true of status is success.
func (s DtStatus) Succeed() bool { return s&DT_SUCCESS != 0 }

// Failed returns true of status is failure.
func (s DtStatus) Failed() bool { return s&DT_FAILURE != 0 }

func (s DtStatus) InProgress() bool { return s&DT_IN_PROGRESS != 0 }

// Detail returns true if specific detail is set.
func (s DtStatus) Detail(detail DtStatus) bool { return s&detail != 0 }

var (
	ErrFailure        = errors.New("detour: failure")
	ErrWrongMagic     = fmt.Errorf("%w: wrong magic", ErrFailure)
	ErrWrongVersion   = fmt.Errorf("%w: wrong version", ErrFailure)
	ErrOutOfMemory    = fmt.Errorf("%w: out of memory", ErrFailure)
	ErrInvalidParam   = fmt.Errorf("%w: invalid parameter", ErrFailure)
	ErrBufferTooSmall = errors.New("detour: result buffer too small")
	ErrOutOfNodes     = errors.New("detour: query ran out of nodes")
	ErrPartialResult  = errors.New("detour: partial result")
)

// Err maps a status to its sentinel error. A plain success yields nil;
// success carrying a detail bit yields the detail error so callers can decide
// whether a partial answer is acceptable.
func (s DtStatus) Err() error {
	if s.Failed() {
		switch {
		case s.Detail(DT_WRONG_MAGIC):
			return ErrWrongMagic
		case s.Detail(DT_WRONG_VERSION):
			return ErrWrongVersion
		case s.Detail(DT_OUT_OF_MEMORY):
			return ErrOutOfMemory
		case s.Detail(DT_INVALID_PARAM):
			return ErrInvalidParam
		}
		return ErrFailure
	}
	switch {
	case s.Detail(DT_OUT_OF_NODES):
		return ErrOutOfNodes
	case s.Detail(DT_PARTIAL_RESULT):
		return ErrPartialResult
	case s.Detail(DT_BUFFER_TOO_SMALL):
		return ErrBufferTooSmall
	}
	return nil
}
