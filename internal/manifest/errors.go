package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingManifest is returned when no manifest exists at the
// configured path. Sync and query cannot proceed without one; creating
// the initial skeleton is an explicit init step, never implicit.
//
// Check with errors.Is:
//
//	if errors.Is(err, manifest.ErrMissingManifest) {
//	    // prompt the user to run init
//	}
var ErrMissingManifest = errors.New("manifest not found")

// IdentifierFormatError reports task ids that fail the required
// bd-<slug> format. It aborts the entire task sync: no partial state
// from the offending pass is ever written.
type IdentifierFormatError struct {
	// IDs lists every offending id, sorted.
	IDs []string
}

func (e *IdentifierFormatError) Error() string {
	return fmt.Sprintf("invalid task id format: %s", strings.Join(e.IDs, ", "))
}

// ValidationError reports structural corruption: required top-level
// manifest fields that are absent. A migration pass that produces one
// restores the pre-migration backup before returning it.
type ValidationError struct {
	// Missing lists the absent top-level fields.
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest missing required fields: %s", strings.Join(e.Missing, ", "))
}
