package model

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrRowNotFound      = errors.New("row not found")
	ErrRowDeleted       = errors.New("row has a pending delete")
	ErrImmutableKey     = errors.New("primary key cannot be updated")
	ErrUnknownCondition = errors.New("unknown filter condition")
)

// ConfigError reports an invalid structural configuration. It is returned
// before any row is looked at.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid hierarchy configuration: " + e.Reason
}

// InvalidParentError is returned when a row is added under a parent that is
// not a known record.
type InvalidParentError struct {
	ParentID RowID
}

func (e *InvalidParentError) Error() string {
	return fmt.Sprintf("invalid parent %s: no such row", IDString(e.ParentID))
}

// CyclicHierarchyError is returned when parent references form a loop.
// Cycles holds the row ids of every loop found, each in traversal order.
type CyclicHierarchyError struct {
	Cycles [][]RowID
}

func (e *CyclicHierarchyError) Error() string {
	parts := make([]string, 0, len(e.Cycles))
	for _, c := range e.Cycles {
		ids := make([]string, len(c))
		for i, id := range c {
			ids[i] = IDString(id)
		}
		parts = append(parts, "["+strings.Join(ids, " -> ")+"]")
	}
	return "cyclic hierarchy: " + strings.Join(parts, ", ")
}

// DuplicateRowIDError is returned when two rows resolve to the same identity.
type DuplicateRowIDError struct {
	RowID RowID
}

func (e *DuplicateRowIDError) Error() string {
	return fmt.Sprintf("duplicate row id %s", IDString(e.RowID))
}

// MissingKeyError is returned when a row has no usable primary key value.
type MissingKeyError struct {
	Field string
	Index int
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("row %d: missing or invalid primary key %q", e.Index, e.Field)
}
