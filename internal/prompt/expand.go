package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// placeholder matches ${name}; name is alphanumeric and underscore.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction specifies how to handle missing variables.
type MissingAction int

const (
	// MissingError returns an error naming every missing variable.
	// This is the default: a prompt with a hole is never sent.
	MissingError MissingAction = iota

	// MissingKeep leaves the placeholder in place.
	MissingKeep

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets how missing variables are handled.
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) { e.missing = action }
}

// Expander substitutes ${name} placeholders.
//
// Strings and numbers are inserted as text. Every other value (slices,
// maps, structs) is inserted as indented JSON with non-ASCII kept as is,
// which is how itineraries and matrices are shown to the model.
// Expander is safe for concurrent use.
type Expander struct {
	missing MissingAction
}

// NewExpander creates an Expander.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missing: MissingError}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand renders s with vars.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	var missing []string
	var encodeErr error

	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		val, ok := vars[name]
		if !ok {
			switch e.missing {
			case MissingEmpty:
				return ""
			case MissingKeep:
				return match
			default:
				missing = append(missing, name)
				return match
			}
		}
		text, err := format(val)
		if err != nil && encodeErr == nil {
			encodeErr = fmt.Errorf("encode ${%s}: %w", name, err)
		}
		return text
	})

	if len(missing) > 0 {
		return out, &UndefinedVariableError{Names: missing}
	}
	if encodeErr != nil {
		return out, encodeErr
	}
	return out, nil
}

// Variables lists the distinct placeholder names in s, sorted.
func Variables(s string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

func format(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "None", nil
	case string:
		return val, nil
	case fmt.Stringer:
		return val.String(), nil
	case int, int64, float64, bool:
		return fmt.Sprint(val), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// UndefinedVariableError is returned when variables are missing under
// MissingError.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}
