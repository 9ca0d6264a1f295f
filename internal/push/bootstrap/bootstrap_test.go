package bootstrap

import (
	"context"
	"testing"

	"gopkg.in/yaml.v3"
)

const seedYAML = `
rules:
  - name: alertmanager-instance
    type: json
    expression: alerts[].labels.instance
  - name: legacy-host
    type: string
    expression: "host {{host}} is down"
    is_active: false
robots:
  - name: 运维群
    english_name: ops
    webhook_url: https://example.com/hook
    robot_type: wechat
    is_default: true
templates:
  - name: alert-card
    content: "alert on {{instance_name}}"
    robot_type: wechat
channels:
  - name: ops-alerts
    robot: 运维群
    template: alert-card
`

func TestSeedFileLayout(t *testing.T) {
	var seed SeedFile
	if err := yaml.Unmarshal([]byte(seedYAML), &seed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(seed.Rules) != 2 || len(seed.Robots) != 1 || len(seed.Templates) != 1 || len(seed.Channels) != 1 {
		t.Fatalf("unexpected counts: %+v", seed)
	}
	if seed.Rules[0].Active != nil {
		t.Fatalf("unset is_active should stay nil")
	}
	if seed.Rules[1].Active == nil || *seed.Rules[1].Active {
		t.Fatalf("explicit is_active false lost")
	}
	if seed.Robots[0].EnglishName != "ops" || !seed.Robots[0].IsDefault {
		t.Fatalf("robot fields: %+v", seed.Robots[0])
	}
	if seed.Channels[0].Robot != "运维群" || seed.Channels[0].Template != "alert-card" {
		t.Fatalf("channel references: %+v", seed.Channels[0])
	}
}

func TestRunWithoutPath(t *testing.T) {
	if err := Run(context.Background(), "  ", Deps{}); err != nil {
		t.Fatalf("blank path should be a no-op: %v", err)
	}
}

func TestRunMissingFile(t *testing.T) {
	if err := Run(context.Background(), "/nonexistent/seed.yaml", Deps{}); err == nil {
		t.Fatal("missing file should error")
	}
}
