// Package kgerr defines the error taxonomy shared by the storage layer, the
// ingestion pipeline and the HTTP boundary. Errors carry a Kind that survives
// wrapping, so callers match with KindOf/IsKind instead of string checks.
package kgerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidUserID     Kind = "invalid_user_id"
	KindUserAbsent        Kind = "user_absent"
	KindUserExists        Kind = "user_exists"
	KindEmptyContent      Kind = "empty_content"
	KindExtractFailed     Kind = "extract_failed"
	KindEmbedFailed       Kind = "embed_failed"
	KindDimensionMismatch Kind = "dimension_mismatch"
	KindNodeAbsent        Kind = "node_absent"
	KindConnectFailed     Kind = "connect_failed"
	KindTimeout           Kind = "timeout"
	KindIngestBusy        Kind = "ingest_busy"
	KindConflictingSchema Kind = "conflicting_schema"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "knowledge graph error"
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// E wraps err with a kind and the operation that produced it.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf walks the wrap chain and returns the first Kind found, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind == kind
	}
	return false
}
