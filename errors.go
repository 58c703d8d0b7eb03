package main

import "fmt"

// MalformedRecordError reports a catalog line with too few fields. It aborts
// the whole run.
type MalformedRecordError struct {
	Format string // catalog format name
	Line   int    // 1-based line number
	Got    int    // number of fields found
	Want   int    // minimum number of fields required
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s catalog line %d: malformed record: got %d fields, want at least %d",
		e.Format, e.Line, e.Got, e.Want)
}

// StoreError wraps a failure of the relational store. Because writes share one
// uncommitted transaction, nothing from the batch is persisted when it occurs.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
