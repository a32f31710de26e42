// Package specscan walks the specification trees and extracts spec
// records from document metadata headers.
package specscan

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Doc is one spec record extracted from a document's metadata header.
type Doc struct {
	ID            string   `yaml:"id"`
	Status        string   `yaml:"status"`
	RelatedTasks  []string `yaml:"relatedTasks"`
	RelatedRules  []string `yaml:"relatedRules"`
	AffectedFiles []string `yaml:"affectedFiles"`
	Dependencies  []string `yaml:"dependencies"`

	// Path is where the document was found, relative to the scan root's
	// parent working directory.
	Path string `yaml:"-"`
}

// Scanner walks an active tree and a pending/draft tree for markdown
// documents carrying a leading YAML frontmatter block.
type Scanner struct {
	activeDir string
	draftDir  string
	logger    *log.Logger
}

// New creates a Scanner over the two spec subtrees. If logger is nil a
// stderr default is used.
func New(activeDir, draftDir string, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.New(os.Stderr, "[specscan] ", log.LstdFlags)
	}
	return &Scanner{activeDir: activeDir, draftDir: draftDir, logger: logger}
}

// Scan walks both subtrees and returns every spec record found, in
// walk order (active tree first). Documents without an id field in
// their header are silently skipped; the scanner never invents ids.
// Unreadable documents and broken headers are skipped with a warning.
// Duplicate ids across the trees are not deduplicated here.
func (s *Scanner) Scan() ([]Doc, error) {
	var docs []Doc
	for _, dir := range []string{s.activeDir, s.draftDir} {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
				return nil
			}

			doc, ok, err := s.readDoc(path)
			if err != nil {
				s.logger.Printf("WARNING: skipping %s: %v", path, err)
				return nil
			}
			if ok {
				docs = append(docs, doc)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk spec tree %s: %w", dir, err)
		}
	}

	return docs, nil
}

// readDoc extracts the metadata header from one document. The second
// return value is false when the document has no id and should be
// skipped without noise.
func (s *Scanner) readDoc(path string) (Doc, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Doc{}, false, fmt.Errorf("failed to read document: %w", err)
	}

	header, ok := frontmatter(string(data))
	if !ok {
		return Doc{}, false, nil
	}

	var doc Doc
	if err := yaml.Unmarshal([]byte(header), &doc); err != nil {
		return Doc{}, false, fmt.Errorf("failed to parse metadata header: %w", err)
	}
	if doc.ID == "" {
		return Doc{}, false, nil
	}

	if doc.Status == "" {
		doc.Status = "active"
	}
	doc.Path = filepath.ToSlash(path)
	return doc, true, nil
}

// frontmatter returns the YAML block delimited by a leading "---" line
// and the next "---" line.
func frontmatter(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), true
		}
	}
	return "", false
}
