// Package template fills user-input templates with variable substitutions.
// It is a pure function of its inputs; the clock and language are supplied
// by the caller.
package template

import (
	"strings"
	"time"
)

// DefaultTemplate is used when a session's model config carries no template.
const DefaultTemplate = "{{input}}"

// InputPlaceholder is the placeholder that must survive substitution.
const InputPlaceholder = "{{input}}"

// Vars carries the substitution values for a template fill.
type Vars struct {
	// Template is the raw template; empty means DefaultTemplate.
	Template string
	// Model is the model identifier substituted for {{model}}.
	Model string
	// Lang is the locale identifier substituted for {{lang}}.
	Lang string
	// Now is the wall clock substituted for {{time}}.
	Now time.Time
}

// Fill substitutes {{model}}, {{time}}, {{lang}}, and {{input}} into the
// template. If the template omits {{input}}, the placeholder is appended
// on its own paragraph before substitution, so the output always contains
// the literal input content.
func Fill(input string, v Vars) string {
	tpl := v.Template
	if tpl == "" {
		tpl = DefaultTemplate
	}

	if !strings.Contains(tpl, InputPlaceholder) {
		tpl += "\n\n" + InputPlaceholder
	}

	r := strings.NewReplacer(
		"{{model}}", v.Model,
		"{{time}}", v.Now.Format("Mon Jan 2 2006 15:04:05"),
		"{{lang}}", v.Lang,
		"{{input}}", input,
	)
	return r.Replace(tpl)
}
