// Package tasklog folds the append-only task log into a current-state
// view of all tasks.
//
// The log is a sequence of line-delimited JSON records. Later records
// fully replace earlier records with the same id (last-write-wins, not
// a per-field merge), so the fold's output map is the authoritative
// current state. The fold itself is pure: it reads parsed records from
// an io.Reader and never touches the manifest.
package tasklog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"slices"

	"github.com/coordkit/manifest/internal/manifest"
)

// idPattern is the required task id format: bd-<slug> with optional
// dot- or dash-separated suffix segments.
var idPattern = regexp.MustCompile(`^bd-[a-z0-9]+([.-][a-z0-9]+)*$`)

// ValidID reports whether id matches the required task id format.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Record is one raw task mutation record from the log.
type Record struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	Spec         string   `json:"spec,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Collapser folds task logs. If logger is nil a stderr default is used.
type Collapser struct {
	logger *log.Logger
}

// New creates a Collapser.
func New(logger *log.Logger) *Collapser {
	if logger == nil {
		logger = log.New(os.Stderr, "[tasklog] ", log.LstdFlags)
	}
	return &Collapser{logger: logger}
}

// maxRecordBytes caps a single log record. Longer lines are skipped
// with a warning, like any other malformed record.
const maxRecordBytes = 1 << 20

// Collapse folds an ordered sequence of log lines into the current
// state of all tasks, keyed by id.
//
// Malformed lines (unparseable JSON, a record with no id, or a record
// over maxRecordBytes) are skipped with a warning; they never abort
// the fold. After folding, every resulting id is validated against the
// required format. Any violation yields a
// *manifest.IdentifierFormatError listing all offending ids, and the
// caller must not apply any state from this pass.
func (c *Collapser) Collapse(r io.Reader) (map[string]Record, error) {
	tasks := make(map[string]Record)

	reader := bufio.NewReader(r)
	lineNum := 0
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNum++
			c.fold(tasks, bytes.TrimRight(line, "\r\n"), lineNum)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read task log: %w", readErr)
		}
	}

	var invalid []string
	for id := range tasks {
		if !ValidID(id) {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		slices.Sort(invalid)
		return nil, &manifest.IdentifierFormatError{IDs: invalid}
	}

	return tasks, nil
}

// fold applies one raw log line to the folded state, skipping empty
// and malformed lines with a warning.
func (c *Collapser) fold(tasks map[string]Record, line []byte, lineNum int) {
	if len(line) == 0 {
		return
	}
	if len(line) > maxRecordBytes {
		c.logger.Printf("WARNING: skipping oversized record at line %d (%d bytes)", lineNum, len(line))
		return
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		c.logger.Printf("WARNING: skipping malformed record at line %d: %v", lineNum, err)
		return
	}
	if rec.ID == "" {
		c.logger.Printf("WARNING: skipping record with no id at line %d", lineNum)
		return
	}

	// Last write wins: the whole record replaces any earlier one.
	tasks[rec.ID] = rec
}

// CollapseFile opens path and folds its contents. A missing log is not
// an error: it yields an empty state, meaning every manifest task is
// subject to removal by the sync policy.
func (c *Collapser) CollapseFile(path string) (map[string]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Record), nil
		}
		return nil, fmt.Errorf("failed to open task log %s: %w", path, err)
	}
	defer f.Close()

	return c.Collapse(f)
}
