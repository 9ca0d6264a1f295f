package registry

import (
	"context"
	"sync"
	"testing"

	"pushgate/internal/push/model"
)

func TestObserveCreatesAndCounts(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	rule := &model.Rule{ID: 1, Name: "first"}

	m, err := r.Observe(ctx, rule, "web-01")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if m.AlertCount != 1 || m.Instance != "web-01" {
		t.Fatalf("unexpected mapping: %#v", m)
	}
	if m.SourceRule == nil || m.SourceRule.Name != "first" {
		t.Fatalf("source rule not recorded: %#v", m.SourceRule)
	}
	if m.LastAlertTime == nil {
		t.Fatal("last alert time not set")
	}

	m, err = r.Observe(ctx, rule, "web-01")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if m.AlertCount != 2 {
		t.Fatalf("alert count should be 2, got %d", m.AlertCount)
	}
}

func TestObserveKeepsFirstSourceRule(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	if _, err := r.Observe(ctx, &model.Rule{ID: 1, Name: "first"}, "db-01"); err != nil {
		t.Fatalf("observe: %v", err)
	}
	m, err := r.Observe(ctx, &model.Rule{ID: 2, Name: "second"}, "db-01")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if m.SourceRule == nil || m.SourceRule.Name != "first" {
		t.Fatalf("later rule must not overwrite source, got %#v", m.SourceRule)
	}
}

func TestObserveEmptyInstance(t *testing.T) {
	r := NewMemoryRegistry()
	if _, err := r.Observe(context.Background(), nil, ""); err == nil {
		t.Fatal("empty identifier should be rejected")
	}
}

func TestObserveConcurrent(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	rule := &model.Rule{ID: 1, Name: "r"}

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Observe(ctx, rule, "shared"); err != nil {
				t.Errorf("observe: %v", err)
			}
		}()
	}
	wg.Wait()

	m, err := r.Observe(ctx, rule, "shared")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if m.AlertCount != n+1 {
		t.Fatalf("alert count should be %d, got %d", n+1, m.AlertCount)
	}
}

func TestResolveChannels(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	wechat := model.Channel{ID: 1, Name: "ops-wechat", Robot: model.Robot{Type: model.RobotWechat}}
	feishu := model.Channel{ID: 2, Name: "ops-feishu", Robot: model.Robot{Type: model.RobotFeishu}}
	r.BindChannels("web-01", wechat, feishu)

	matched, bound, known, err := r.ResolveChannels(ctx, "web-01", model.RobotWechat)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !known {
		t.Fatal("instance should be known")
	}
	if len(bound) != 2 || len(matched) != 1 || matched[0].Name != "ops-wechat" {
		t.Fatalf("unexpected resolution: matched=%#v bound=%#v", matched, bound)
	}

	// bound but nothing compatible
	matched, bound, known, err = r.ResolveChannels(ctx, "web-01", model.RobotDingtalk)
	if err != nil || !known {
		t.Fatalf("resolve: known=%v err=%v", known, err)
	}
	if len(matched) != 0 || len(bound) != 2 {
		t.Fatalf("unexpected resolution: matched=%#v bound=%#v", matched, bound)
	}

	// unknown identifier
	_, _, known, err = r.ResolveChannels(ctx, "ghost", model.RobotWechat)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if known {
		t.Fatal("ghost should be unknown")
	}
}
