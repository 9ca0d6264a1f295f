package render

import (
	"fmt"
	"regexp"
	"sort"
)

var varRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{name}} variables in the template body with values from
// data. Missing variables render as empty strings; they are additionally
// returned so callers can surface which inputs were absent.
func Render(body string, data map[string]any) (string, []string, error) {
	if body == "" {
		return "", nil, fmt.Errorf("empty template body")
	}

	missing := map[string]struct{}{}
	out := varRe.ReplaceAllStringFunc(body, func(m string) string {
		name := varRe.FindStringSubmatch(m)[1]
		v, ok := data[name]
		if !ok || v == nil {
			missing[name] = struct{}{}
			return ""
		}
		return fmt.Sprint(v)
	})

	var names []string
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return out, names, nil
}

// Vars lists the distinct variable names referenced by a template body, in
// order of first appearance.
func Vars(body string) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, m := range varRe.FindAllStringSubmatch(body, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}
