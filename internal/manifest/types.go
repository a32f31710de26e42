package manifest

import "time"

// FormatVersion is the manifest schema version written by this build.
// Load rejects manifests whose major version is newer than this.
const FormatVersion = "1.0.0"

// Spec statuses.
const (
	StatusActive   = "active"
	StatusDraft    = "draft"
	StatusArchived = "archived"
)

// Manifest is the persisted cross-reference index linking specs, tasks,
// rules, and files.
type Manifest struct {
	Version     string                `json:"version"`
	LastUpdated time.Time             `json:"lastUpdated"`
	Specs       map[string]*SpecEntry `json:"specs"`
	Tasks       map[string]*TaskEntry `json:"tasks"`
	Rules       map[string]*RuleEntry `json:"rules"`
	Files       map[string]*FileEntry `json:"files"`
}

// SpecEntry describes one specification document, keyed by spec id.
type SpecEntry struct {
	Path          string   `json:"path"`
	Status        string   `json:"status"` // active, draft, archived
	RelatedTasks  []string `json:"relatedTasks"`
	RelatedRules  []string `json:"relatedRules"`
	AffectedFiles []string `json:"affectedFiles"` // glob patterns
	Dependencies  []string `json:"dependencies"`  // spec ids
}

// TaskEntry describes one work item, keyed by task id.
// Task ids must match ^bd-[a-z0-9]+([.-][a-z0-9]+)*$.
type TaskEntry struct {
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	RelatedSpecs []string `json:"relatedSpecs"`
	RelatedRules []string `json:"relatedRules"`
	OutputFiles  []string `json:"outputFiles"`
	Dependencies []string `json:"dependencies"` // task ids
}

// RuleEntry describes one externally authored policy rule, keyed by
// rule name. Rules are inputs to the index; they are never synchronized
// from a separate source of truth.
type RuleEntry struct {
	Path      string    `json:"path"`
	AppliesTo AppliesTo `json:"appliesTo"`
	Priority  int       `json:"priority"`
}

// AppliesTo scopes a rule to file patterns, specs, and tasks.
type AppliesTo struct {
	FilePatterns []string `json:"filePatterns"` // glob patterns
	Specs        []string `json:"specs"`
	Tasks        []string `json:"tasks"`
}

// FileEntry records creation/modification attribution for one file,
// keyed by file path. GovernedBy and RulesApplied are derived values:
// recomputing them from the current specs/rules collections must be
// deterministic and idempotent.
type FileEntry struct {
	CreatedBy    string   `json:"createdBy,omitempty"`
	ModifiedBy   []string `json:"modifiedBy"`
	GovernedBy   []string `json:"governedBy"`   // spec ids, derived
	RulesApplied []string `json:"rulesApplied"` // rule names, derived
}

// New returns an empty manifest skeleton at the current format version.
func New() *Manifest {
	return &Manifest{
		Version: FormatVersion,
		Specs:   make(map[string]*SpecEntry),
		Tasks:   make(map[string]*TaskEntry),
		Rules:   make(map[string]*RuleEntry),
		Files:   make(map[string]*FileEntry),
	}
}

// Validate checks the manifest's structural integrity: the version
// field and all four top-level collections must be present. It returns
// a *ValidationError listing everything that is missing.
func (m *Manifest) Validate() error {
	var missing []string
	if m.Version == "" {
		missing = append(missing, "version")
	}
	if m.Specs == nil {
		missing = append(missing, "specs")
	}
	if m.Tasks == nil {
		missing = append(missing, "tasks")
	}
	if m.Rules == nil {
		missing = append(missing, "rules")
	}
	if m.Files == nil {
		missing = append(missing, "files")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
