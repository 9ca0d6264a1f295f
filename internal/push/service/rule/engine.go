package rule

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"pushgate/internal/push/model"
)

// arrayMarker splits a JSON path into the segments before the wildcard array
// and the segments applied to each array element.
const arrayMarker = "[]"

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Engine extracts identifier values from raw alert payloads. It is pure:
// no persistence, no mutation of the payload, and it never returns an error —
// any malformed input or bad expression yields an empty result and a logged
// diagnostic so one broken rule cannot stall the others.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Extract runs one rule against one payload and returns the deduplicated
// values in first-seen order.
func (e *Engine) Extract(r *model.Rule, payload string) []string {
	if r == nil || r.Expression == "" {
		return nil
	}
	switch r.Kind {
	case model.RuleKindJSON:
		return e.extractJSON(r, payload)
	case model.RuleKindString:
		return e.extractPattern(r, payload)
	default:
		log.Warn().Str("rule", r.Name).Str("kind", string(r.Kind)).Msg("unknown rule kind, skipping")
		return nil
	}
}

func (e *Engine) extractJSON(r *model.Rule, payload string) []string {
	doc, ok := decodePayload(payload)
	if !ok {
		log.Debug().Str("rule", r.Name).Msg("payload is not decodable JSON, empty extraction")
		return nil
	}

	seen := map[string]struct{}{}
	var out []string
	collect := func(v any) {
		for _, s := range stringifyValues(v) {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	if strings.Contains(r.Expression, arrayMarker) {
		before, after, _ := strings.Cut(r.Expression, arrayMarker)
		arrayPath := splitPath(before)
		fieldPath := splitPath(after)

		seq, ok := walk(doc, arrayPath)
		if !ok {
			return nil
		}
		items, ok := seq.([]any)
		if !ok {
			return nil
		}
		for _, item := range items {
			if v, ok := walk(item, fieldPath); ok {
				collect(v)
			}
		}
		return out
	}

	if v, ok := walk(doc, splitPath(r.Expression)); ok {
		collect(v)
	}
	return out
}

// extractPattern matches {{name}} placeholders against the raw text. Each
// placeholder becomes a non-whitespace capture with the surrounding literal
// text quoted; captures across all placeholders and matches are unioned.
func (e *Engine) extractPattern(r *model.Rule, payload string) []string {
	names := placeholderRe.FindAllString(r.Expression, -1)
	if len(names) == 0 {
		return nil
	}

	seen := map[string]struct{}{}
	var out []string
	for _, target := range names {
		re, err := compilePlaceholder(r.Expression, target)
		if err != nil {
			log.Debug().Err(err).Str("rule", r.Name).Str("placeholder", target).Msg("pattern compile failed")
			continue
		}
		for _, m := range re.FindAllStringSubmatch(payload, -1) {
			if len(m) < 2 || m[1] == "" {
				continue
			}
			if _, dup := seen[m[1]]; dup {
				continue
			}
			seen[m[1]] = struct{}{}
			out = append(out, m[1])
		}
	}
	return out
}

// compilePlaceholder turns the pattern into a regexp capturing the target
// placeholder as a non-whitespace run; other placeholders match without
// capturing and the remaining text is matched literally.
func compilePlaceholder(expr, target string) (*regexp.Regexp, error) {
	const capture = "\x00CAP\x00"
	const skip = "\x00ANY\x00"

	replaced := strings.Replace(expr, target, capture, 1)
	replaced = placeholderRe.ReplaceAllString(replaced, skip)
	quoted := regexp.QuoteMeta(replaced)
	quoted = strings.Replace(quoted, capture, `(\S+)`, 1)
	quoted = strings.ReplaceAll(quoted, skip, `\S+`)
	return regexp.Compile(quoted)
}

// decodePayload parses text as JSON with a bounded fallback chain: direct
// parse, unicode-unescape then parse, escaped-dot stripping then parse.
// The fallbacks are best-effort text cleanup for double-escaped webhook
// bodies, not a guaranteed decode.
func decodePayload(payload string) (any, bool) {
	text := strings.TrimSpace(payload)
	if text == "" {
		return nil, false
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err == nil {
		return doc, true
	}

	if unescaped, err := unicodeUnescape(text); err == nil {
		if err := json.Unmarshal([]byte(unescaped), &doc); err == nil {
			return doc, true
		}
	}

	stripped := strings.ReplaceAll(text, `\.`, ".")
	if err := json.Unmarshal([]byte(stripped), &doc); err == nil {
		return doc, true
	}
	return nil, false
}

// unicodeUnescape undoes one layer of string escaping (\uXXXX, \n, \", ...),
// the common shape of a JSON document that was serialized twice.
func unicodeUnescape(s string) (string, error) {
	quoted := `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\"`, "\x01"), `"`, `\"`) + `"`
	quoted = strings.ReplaceAll(quoted, "\x01", `\"`)
	return strconv.Unquote(quoted)
}

func splitPath(expr string) []string {
	var segs []string
	for _, s := range strings.Split(expr, ".") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// walk descends through nested objects by field name. A missing key or a
// non-object in the middle of the path short-circuits to "no value".
func walk(doc any, path []string) (any, bool) {
	cur := doc
	for _, seg := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// stringifyValues renders a resolved value as identifier strings: a scalar
// becomes one string, a sequence contributes each of its scalar elements,
// nulls and nested containers are dropped.
func stringifyValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		var out []string
		for _, el := range t {
			if s, ok := stringifyScalar(el); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, ok := stringifyScalar(v); ok {
			return []string{s}
		}
		return nil
	}
}

func stringifyScalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}
