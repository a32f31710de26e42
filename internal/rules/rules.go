// Package rules imports externally authored policy rules into the
// manifest. Rules are inputs to the index: they are loaded from a TOML
// document maintained outside this system and never synchronized back.
package rules

import (
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/coordkit/manifest/internal/manifest"
)

// Rule is one rule definition as authored in the TOML document.
//
//	[rules.ts-style]
//	path = "rules/ts-style.md"
//	priority = 1
//	filePatterns = ["src/**/*.ts"]
//	specs = ["spec-auth"]
//	tasks = ["bd-a1"]
type Rule struct {
	Path         string   `toml:"path"`
	Priority     int      `toml:"priority"`
	FilePatterns []string `toml:"filePatterns"`
	Specs        []string `toml:"specs"`
	Tasks        []string `toml:"tasks"`
}

// File is the top-level TOML document.
type File struct {
	Rules map[string]Rule `toml:"rules"`
}

// Importer loads rule documents into a manifest store.
type Importer struct {
	store  *manifest.Store
	logger *log.Logger
}

// NewImporter creates an Importer. If logger is nil a stderr default
// is used.
func NewImporter(store *manifest.Store, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(os.Stderr, "[rules] ", log.LstdFlags)
	}
	return &Importer{store: store, logger: logger}
}

// ImportFile parses the TOML document at path and upserts every rule
// into the manifest's rules collection, replacing existing entries of
// the same name wholesale. It returns the number of rules imported.
func (i *Importer) ImportFile(path string) (int, error) {
	var doc File
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	if len(doc.Rules) == 0 {
		return 0, nil
	}

	m, err := i.store.Load()
	if err != nil {
		return 0, err
	}

	for name, rule := range doc.Rules {
		m.Rules[name] = &manifest.RuleEntry{
			Path: rule.Path,
			AppliesTo: manifest.AppliesTo{
				FilePatterns: cloneOrEmpty(rule.FilePatterns),
				Specs:        cloneOrEmpty(rule.Specs),
				Tasks:        cloneOrEmpty(rule.Tasks),
			},
			Priority: rule.Priority,
		}
	}

	m.LastUpdated = i.store.Now()
	if err := i.store.Save(m); err != nil {
		return 0, err
	}

	i.logger.Printf("Imported %d rule(s) from %s", len(doc.Rules), path)
	return len(doc.Rules), nil
}

func cloneOrEmpty(s []string) []string {
	if len(s) == 0 {
		return []string{}
	}
	return slices.Clone(s)
}
