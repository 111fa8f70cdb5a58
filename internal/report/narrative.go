package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/src-d/enry/v2"

	"github.com/lucasnoah/bistr/internal/pipeline"
)

const (
	indexFile    = "index.html"
	manifestFile = ".narratives.json"
)

// docSeparator replaces path separators in document names.
const docSeparator = "__"

// NarrativeWriter writes one HTML document per analyzed file plus an index.
type NarrativeWriter struct {
	dir  string
	root string
	now  func() time.Time
}

// NewNarrativeWriter writes documents for files under root into dir.
func NewNarrativeWriter(dir, root string) *NarrativeWriter {
	return &NarrativeWriter{dir: dir, root: root, now: time.Now}
}

// Dir returns the output directory.
func (n *NarrativeWriter) Dir() string {
	return n.dir
}

// DocName maps a source file to its document file name.
func (n *NarrativeWriter) DocName(file string) string {
	rel, err := filepath.Rel(n.root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(file)
	}
	name := strings.ReplaceAll(filepath.ToSlash(rel), "/", docSeparator) + ".html"
	if name == indexFile {
		name = "_" + name
	}
	return name
}

func docLabel(name string) string {
	return strings.ReplaceAll(strings.TrimSuffix(name, ".html"), docSeparator, "/")
}

// FileAnalyzed writes the document for file and regenerates the index.
func (n *NarrativeWriter) FileAnalyzed(file, response string) error {
	name := n.DocName(file)
	title := docLabel(name)

	var buf bytes.Buffer
	err := pages.ExecuteTemplate(&buf, "narrative.html", map[string]any{
		"Source":      file,
		"Title":       title,
		"Language":    enry.GetLanguage(filepath.Base(file), nil),
		"GeneratedAt": n.now().Format(time.RFC1123),
		"Response":    response,
	})
	if err != nil {
		return fmt.Errorf("render narrative for %s: %w", file, err)
	}
	if err := pipeline.WriteAtomic(filepath.Join(n.dir, name), buf.Bytes()); err != nil {
		return fmt.Errorf("write narrative for %s: %w", file, err)
	}
	m, err := n.record(name)
	if err != nil {
		return err
	}
	return n.writeIndex(m)
}

// Summarize implements Sink; narratives have no summary.
func (n *NarrativeWriter) Summarize([]AnalysisRecord, []SkippedFile) error {
	return nil
}

type indexDoc struct {
	Href  string
	Label string
}

// narrativeManifest lists the documents the writer produced for the current
// batch. The index is built from it, never from a directory listing.
type narrativeManifest struct {
	Root string   `json:"root"`
	Docs []string `json:"docs"`
}

func (n *NarrativeWriter) manifestPath() string {
	return filepath.Join(n.dir, manifestFile)
}

func (n *NarrativeWriter) readManifest() (*narrativeManifest, error) {
	m := &narrativeManifest{Root: n.root}
	if err := pipeline.ReadJSON(n.manifestPath(), m); err != nil {
		if os.IsNotExist(err) {
			return &narrativeManifest{Root: n.root}, nil
		}
		return nil, fmt.Errorf("read narrative manifest: %w", err)
	}
	return m, nil
}

func (n *NarrativeWriter) record(name string) (*narrativeManifest, error) {
	m, err := n.readManifest()
	if err != nil {
		return nil, err
	}
	if !slices.Contains(m.Docs, name) {
		m.Docs = append(m.Docs, name)
	}
	m.Root = n.root
	if err := pipeline.WriteJSON(n.manifestPath(), m); err != nil {
		return nil, fmt.Errorf("write narrative manifest: %w", err)
	}
	return m, nil
}

// Reset starts a new batch: documents of the previous batch are removed and
// the index is emptied.
func (n *NarrativeWriter) Reset() error {
	m, err := n.readManifest()
	if err != nil {
		return err
	}
	for _, name := range m.Docs {
		if err := os.Remove(filepath.Join(n.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	empty := &narrativeManifest{Root: n.root, Docs: []string{}}
	if err := pipeline.WriteJSON(n.manifestPath(), empty); err != nil {
		return fmt.Errorf("write narrative manifest: %w", err)
	}
	return n.writeIndex(empty)
}

// WriteIndex rebuilds index.html from the documents of the current batch,
// including those written by earlier processes of a resumed batch.
func (n *NarrativeWriter) WriteIndex() error {
	m, err := n.readManifest()
	if err != nil {
		return err
	}
	return n.writeIndex(m)
}

func (n *NarrativeWriter) writeIndex(m *narrativeManifest) error {
	docs := make([]indexDoc, 0, len(m.Docs))
	for _, name := range m.Docs {
		docs = append(docs, indexDoc{Href: name, Label: docLabel(name)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Label < docs[j].Label })

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "index.html", map[string]any{
		"Root": n.root,
		"Docs": docs,
	}); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	if err := pipeline.WriteAtomic(filepath.Join(n.dir, indexFile), buf.Bytes()); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
