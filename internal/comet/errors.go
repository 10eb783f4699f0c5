package comet

import (
	"errors"
	"fmt"
)

// ErrNoCaller is returned when a LedgerSource has no chain connection.
var ErrNoCaller = errors.New("chain caller is nil")

// AcquisitionError reports a failed ledger read. Contract is the address that
// was called and Field the value being read.
type AcquisitionError struct {
	Contract string
	Field    string
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s from %s: %v", e.Field, e.Contract, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// withFieldPrefix qualifies the field of an AcquisitionError, e.g. "asset[2].getPrice".
func withFieldPrefix(err error, prefix string) error {
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		return err
	}
	return &AcquisitionError{Contract: acqErr.Contract, Field: prefix + "." + acqErr.Field, Err: acqErr.Err}
}
