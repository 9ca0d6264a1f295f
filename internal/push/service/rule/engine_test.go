package rule

import (
	"reflect"
	"testing"

	"pushgate/internal/push/model"
)

const alertmanagerPayload = `{
	"status": "firing",
	"alerts": [
		{"labels": {"instance": "10.0.0.1:9100", "job": "node"}},
		{"labels": {"instance": "10.0.0.2:9100", "job": "node"}},
		{"labels": {"instance": "10.0.0.1:9100", "job": "node"}}
	]
}`

func jsonRule(expr string) *model.Rule {
	return &model.Rule{ID: 1, Name: "json-rule", Kind: model.RuleKindJSON, Expression: expr, Active: true}
}

func stringRule(expr string) *model.Rule {
	return &model.Rule{ID: 2, Name: "string-rule", Kind: model.RuleKindString, Expression: expr, Active: true}
}

func TestExtractJSONArrayPath(t *testing.T) {
	e := NewEngine()
	got := e.Extract(jsonRule("alerts[].labels.instance"), alertmanagerPayload)
	want := []string{"10.0.0.1:9100", "10.0.0.2:9100"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected extraction: %#v", got)
	}
}

func TestExtractJSONPlainPath(t *testing.T) {
	e := NewEngine()
	payload := `{"labels": {"instance": "db-01", "severity": "critical"}}`
	got := e.Extract(jsonRule("labels.instance"), payload)
	if !reflect.DeepEqual(got, []string{"db-01"}) {
		t.Fatalf("unexpected extraction: %#v", got)
	}
}

func TestExtractJSONScalarKinds(t *testing.T) {
	e := NewEngine()
	cases := []struct {
		payload string
		want    []string
	}{
		{`{"v": 42}`, []string{"42"}},
		{`{"v": 3.5}`, []string{"3.5"}},
		{`{"v": true}`, []string{"true"}},
		{`{"v": ["a", "b", "a"]}`, []string{"a", "b"}},
		{`{"v": null}`, nil},
		{`{"v": {"nested": 1}}`, nil},
	}
	for _, c := range cases {
		got := e.Extract(jsonRule("v"), c.payload)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("payload %s: got %#v, want %#v", c.payload, got, c.want)
		}
	}
}

func TestExtractJSONMissingSegments(t *testing.T) {
	e := NewEngine()
	cases := []string{
		"alerts[].labels.missing",
		"missing[].labels.instance",
		"status[].x", // wildcard over a non-array
		"alerts.labels.instance",
	}
	for _, expr := range cases {
		if got := e.Extract(jsonRule(expr), alertmanagerPayload); got != nil {
			t.Fatalf("expression %s should yield nothing, got %#v", expr, got)
		}
	}
}

func TestExtractJSONNonJSONPayload(t *testing.T) {
	e := NewEngine()
	if got := e.Extract(jsonRule("alerts[].labels.instance"), "plain text alert"); got != nil {
		t.Fatalf("non-JSON payload should yield nothing, got %#v", got)
	}
	if got := e.Extract(jsonRule("a.b"), "   "); got != nil {
		t.Fatalf("blank payload should yield nothing, got %#v", got)
	}
}

func TestExtractJSONEscapedFallbacks(t *testing.T) {
	e := NewEngine()

	// one extra layer of string escaping, as produced by double serialization
	escaped := `{\"labels\": {\"instance\": \"web-01\"}}`
	got := e.Extract(jsonRule("labels.instance"), escaped)
	if !reflect.DeepEqual(got, []string{"web-01"}) {
		t.Fatalf("escaped payload: got %#v", got)
	}

	// unicode escapes survive the unescape pass
	unicode := `{\"name\": \"服务\"}`
	got = e.Extract(jsonRule("name"), unicode)
	if !reflect.DeepEqual(got, []string{"服务"}) {
		t.Fatalf("unicode payload: got %#v", got)
	}
}

func TestExtractPattern(t *testing.T) {
	e := NewEngine()
	r := stringRule("host {{host}} is down")
	got := e.Extract(r, "host web-01 is down\nhost web-02 is down\nhost web-01 is down")
	want := []string{"web-01", "web-02"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected captures: %#v", got)
	}
}

func TestExtractPatternMultiplePlaceholders(t *testing.T) {
	e := NewEngine()
	r := stringRule("{{service}} on {{host}} failed")
	got := e.Extract(r, "payments on db-01 failed")
	want := []string{"payments", "db-01"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected captures: %#v", got)
	}
}

func TestExtractPatternLiteralMetaChars(t *testing.T) {
	e := NewEngine()
	r := stringRule("usage (pct) of {{disk}} high")
	got := e.Extract(r, "usage (pct) of /dev/sda1 high")
	if !reflect.DeepEqual(got, []string{"/dev/sda1"}) {
		t.Fatalf("meta chars should match literally, got %#v", got)
	}
}

func TestExtractPatternNoMatch(t *testing.T) {
	e := NewEngine()
	if got := e.Extract(stringRule("host {{h}} down"), "nothing relevant"); got != nil {
		t.Fatalf("expected no captures, got %#v", got)
	}
	if got := e.Extract(stringRule("no placeholders here"), "no placeholders here"); got != nil {
		t.Fatalf("pattern without placeholders should yield nothing, got %#v", got)
	}
}

func TestExtractGuards(t *testing.T) {
	e := NewEngine()
	if got := e.Extract(nil, "x"); got != nil {
		t.Fatalf("nil rule: %#v", got)
	}
	if got := e.Extract(&model.Rule{Kind: model.RuleKindJSON}, "x"); got != nil {
		t.Fatalf("empty expression: %#v", got)
	}
	bad := &model.Rule{Name: "odd", Kind: "regex", Expression: ".*"}
	if got := e.Extract(bad, "x"); got != nil {
		t.Fatalf("unknown kind should be skipped, got %#v", got)
	}
}
