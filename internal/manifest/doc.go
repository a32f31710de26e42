// Package manifest defines the coordination manifest schema and the
// store that owns its persisted representation.
//
// The manifest is a single JSON document holding four keyed collections
// (specs, tasks, rules, files) plus a format version and last-sync
// timestamp. The Store is the only component that touches the file
// directly; every other package goes through it. Writes are atomic
// (temp file + rename) so a crash never leaves a half-written manifest.
package manifest
