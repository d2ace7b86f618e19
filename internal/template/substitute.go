// Package template expands placeholders in per-call request fields such as
// the target URL: ${index}, ${env:VAR} and built-in functions like ${uuid()}.
package template

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"salvo/internal/core"
)

// varPattern matches ${var}, ${env:VAR} and ${fn(args)} placeholders.
var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// HasPlaceholders reports whether text needs substitution at all.
func HasPlaceholders(text string) bool {
	return strings.Contains(text, "${")
}

// Substitute replaces placeholders in text. Missing variables and failing
// functions are all reported, joined into one error.
func Substitute(text string, vars core.Variables) (string, error) {
	if !HasPlaceholders(text) {
		return text, nil
	}

	var errs []error
	result := varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-1]

		if strings.HasPrefix(name, "env:") {
			envName := name[4:]
			if val, ok := os.LookupEnv(envName); ok {
				return val
			}
			errs = append(errs, fmt.Errorf("env var %q not set", envName))
			return match
		}

		if val, isFunc, err := evalFunction(name); isFunc {
			if err != nil {
				errs = append(errs, err)
				return match
			}
			return val
		}

		if vars != nil {
			if val, ok := vars.Get(name); ok {
				return fmt.Sprintf("%v", val)
			}
		}
		errs = append(errs, fmt.Errorf("variable %q not found", name))
		return match
	})

	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return result, nil
}

// SubstituteMap applies substitution to all values in a map.
func SubstituteMap(m map[string]string, vars core.Variables) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]string, len(m))
	var errs []error

	for k, v := range m {
		substituted, err := Substitute(v, vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("header %q: %w", k, err))
			continue
		}
		result[k] = substituted
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}

// ForCall returns the variables available to call number index.
func ForCall(index int) *core.MapVariables {
	vars := core.NewVariables()
	vars.Set("index", index)
	return vars
}
