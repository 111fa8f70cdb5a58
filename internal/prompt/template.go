// Package prompt renders the text sent to the analysis service.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	varRe    = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifOpenRe = regexp.MustCompile(`\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
)

const ifClose = "{{/if}}"

// Vars maps template variable names to values.
type Vars map[string]string

// Render expands tmpl. {{name}} is replaced by its value and every referenced
// variable must be present. {{#if name}}...{{/if}} keeps its body only when
// name is set and non-empty; blocks may nest.
func Render(tmpl string, vars Vars) (string, error) {
	body, err := expandConditionals(tmpl, vars)
	if err != nil {
		return "", err
	}

	var missing []string
	out := varRe.ReplaceAllStringFunc(body, func(match string) string {
		name := varRe.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// expandConditionals resolves blocks innermost-first: for the first closing
// tag, the nearest opening tag before it is its partner.
func expandConditionals(tmpl string, vars Vars) (string, error) {
	s := tmpl
	for {
		end := strings.Index(s, ifClose)
		if end < 0 {
			break
		}
		opens := ifOpenRe.FindAllStringSubmatchIndex(s[:end], -1)
		if len(opens) == 0 {
			return "", fmt.Errorf("dangling %s without matching {{#if}}", ifClose)
		}
		open := opens[len(opens)-1]
		name := s[open[2]:open[3]]

		keep := ""
		if v := vars[name]; v != "" {
			keep = s[open[1]:end]
		}
		s = s[:open[0]] + keep + s[end+len(ifClose):]
	}

	if loc := ifOpenRe.FindString(s); loc != "" {
		return "", fmt.Errorf("unclosed conditional block: %s", loc)
	}
	return s, nil
}

// OverrideDir is where a target directory may keep its own prompt templates.
const OverrideDir = ".bistr/prompts"

// Load returns the template called name. A file <root>/.bistr/prompts/<name>.md
// takes precedence over the built-in template.
func Load(name, root string) (string, error) {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid template name %q", name)
	}
	if root != "" {
		path := filepath.Join(root, filepath.FromSlash(OverrideDir), name+".md")
		if data, err := os.ReadFile(path); err == nil {
			return string(data), nil
		}
	}
	if tmpl, ok := builtinTemplates[name]; ok {
		return tmpl, nil
	}
	return "", fmt.Errorf("no prompt template %q", name)
}
