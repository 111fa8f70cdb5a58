package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/src-d/enry/v2"

	"github.com/lucasnoah/bistr/internal/prompt"
)

// templateFor loads a prompt template once per run, so every file of a batch
// is rendered from the same text even when an override changes mid-run.
func (o *Orchestrator) templateFor(name, root string) (string, error) {
	k := root + "\x00" + name
	if cached, ok := o.templates.Get(k); ok {
		return cached.(string), nil
	}
	tmpl, err := prompt.Load(name, root)
	if err != nil {
		return "", err
	}
	o.templates.Set(k, tmpl, cache.NoExpiration)
	return tmpl, nil
}

// promptFor renders the prompt for file from its current content.
func (o *Orchestrator) promptFor(key, file string, opts Options) (string, error) {
	code, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read source file %s: %w", file, err)
	}

	name := prompt.Analyze
	if opts.Structured() {
		name = prompt.Research
	}
	tmpl, err := o.templateFor(name, key)
	if err != nil {
		return "", err
	}

	text, err := prompt.Render(tmpl, prompt.Vars{
		"file_name": filepath.Base(file),
		"file_path": displayPath(key, file),
		"code":      string(code),
		"language":  enry.GetLanguage(filepath.Base(file), code),
		"question":  opts.Question,
	})
	if err != nil {
		return "", fmt.Errorf("render %s prompt for %s: %w", name, file, err)
	}
	return text, nil
}

func trimLine(s string) string {
	return strings.TrimSpace(s)
}

func normalizeAnswer(s string) string {
	return strings.ToLower(trimLine(s))
}

func isBye(s string) bool {
	return strings.EqualFold(trimLine(s), "bye")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
