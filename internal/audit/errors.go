package audit

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/crucial707/asset-audit/internal/models"
)

var (
	// ErrNotFound is returned when an audit id does not resolve.
	ErrNotFound = errors.New("audit not found")

	// ErrAlreadyScanned is returned by Scan when the asset's item already left pending.
	// The accompanying ScanResult carries the asset and item for display.
	ErrAlreadyScanned = errors.New("asset already scanned in this audit")

	// ErrDuplicateCode is returned by a store when the generated audit code collides.
	ErrDuplicateCode = errors.New("duplicate audit code")
)

// ValidationError reports malformed input, keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// StateError reports an operation attempted in the wrong lifecycle state.
type StateError struct {
	Op    string
	State models.AuditState
	Msg   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s (state %s)", e.Op, e.Msg, e.State)
}
