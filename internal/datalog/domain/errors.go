package datalog

import "errors"

var (
	// ErrDateMismatch is returned when a row does not belong to the table's day.
	ErrDateMismatch = errors.New("datalog: row dated outside table day")
	// ErrZeroTimestamp is returned when a row has no timestamp.
	ErrZeroTimestamp = errors.New("datalog: zero timestamp")
)
