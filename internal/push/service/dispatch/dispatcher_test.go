package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushgate/internal/push/model"
	"pushgate/internal/push/service/recorder"
	"pushgate/internal/push/service/registry"
)

type staticRules struct {
	rules []model.Rule
	err   error
}

func (s *staticRules) ListActiveRules(context.Context) ([]model.Rule, error) {
	return s.rules, s.err
}

// fakeSender records every send and returns a fixed outcome.
type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	ok      bool
	errText string
}

func (f *fakeSender) Send(_ context.Context, robot *model.Robot, content string) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, robot.Name+": "+content)
	return f.ok, f.errText
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeRegistry drives the resolution branches the memory registry cannot
// reach, like an identifier vanishing between observation and resolution.
type fakeRegistry struct {
	observeErr error
	known      bool
	matched    []model.Channel
	bound      []model.Channel
}

func (f *fakeRegistry) Observe(_ context.Context, _ *model.Rule, instance string) (*model.InstanceMapping, error) {
	if f.observeErr != nil {
		return nil, f.observeErr
	}
	return &model.InstanceMapping{Instance: instance, AlertCount: 1}, nil
}

func (f *fakeRegistry) ResolveChannels(context.Context, string, model.RobotType) ([]model.Channel, []model.Channel, bool, error) {
	return f.matched, f.bound, f.known, nil
}

var instanceRule = model.Rule{
	ID: 1, Name: "instance-rule", Kind: model.RuleKindJSON,
	Expression: "alerts[].labels.instance", Active: true,
}

func wechatTemplate() *model.Template {
	return &model.Template{ID: 1, Name: "alert-card", Content: "alert: {{instance_name}}", Type: model.RobotWechat}
}

func channel(id int64, name string, kind model.RobotType) model.Channel {
	return model.Channel{
		ID: id, Name: name, Active: true,
		Robot:    model.Robot{ID: id, Name: name + "-robot", Type: kind, WebhookURL: "http://robot"},
		Template: model.Template{ID: id, Type: kind},
	}
}

const twoAlertPayload = `{"alerts":[{"labels":{"instance":"web-01"}},{"labels":{"instance":"web-02"}}]}`

func TestDispatchAlertSuccess(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	reg.BindChannels("web-01", channel(1, "ops", model.RobotWechat))
	reg.BindChannels("web-02", channel(1, "ops", model.RobotWechat))

	rec := recorder.NewMemoryRecorder()
	sender := &fakeSender{ok: true}
	d := New(&staticRules{rules: []model.Rule{instanceRule}}, reg, rec, sender)

	report := d.DispatchAlert(context.Background(), wechatTemplate(), twoAlertPayload)

	assert.Equal(t, 2, report.TotalInstances)
	assert.Equal(t, []string{"web-01", "web-02"}, report.ProcessedInstances)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 0, report.ErrorCount)
	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, "ops", res.Channel)
	}
	assert.Equal(t, 2, sender.count())

	// every observation leaves an audit row
	records := rec.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "instance-rule", records[0].RuleName)
	assert.Equal(t, []string{"web-01", "web-02"}, records[0].ExtractedValues)
}

func TestDispatchAlertMixedChannelTypes(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	reg.BindChannels("web-01",
		channel(1, "ops-wechat-1", model.RobotWechat),
		channel(2, "ops-wechat-2", model.RobotWechat),
		channel(3, "ops-feishu", model.RobotFeishu),
	)

	sender := &fakeSender{ok: true}
	d := New(&staticRules{rules: []model.Rule{instanceRule}}, reg, recorder.NewMemoryRecorder(), sender)

	payload := `{"alerts":[{"labels":{"instance":"web-01"}}]}`
	report := d.DispatchAlert(context.Background(), wechatTemplate(), payload)

	// compatible channels are attempted, the incompatible one is an error
	require.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, 2, sender.count())

	byChannel := map[string]Result{}
	for _, res := range report.Results {
		byChannel[res.Channel] = res
	}
	assert.Equal(t, StatusSuccess, byChannel["ops-wechat-1"].Status)
	assert.Equal(t, StatusSuccess, byChannel["ops-wechat-2"].Status)
	assert.Equal(t, StatusError, byChannel["ops-feishu"].Status)
	assert.Contains(t, byChannel["ops-feishu"].Error, "does not match robot type")
}

func TestDispatchAlertAllChannelsIncompatible(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	reg.BindChannels("web-01", channel(2, "ops-feishu", model.RobotFeishu))

	sender := &fakeSender{ok: true}
	d := New(&staticRules{rules: []model.Rule{instanceRule}}, reg, recorder.NewMemoryRecorder(), sender)

	payload := `{"alerts":[{"labels":{"instance":"web-01"}}]}`
	report := d.DispatchAlert(context.Background(), wechatTemplate(), payload)

	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusError, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Error, "does not match robot type")
	assert.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, 0, sender.count())
}

func TestDispatchAlertUnknownAndUnbound(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	// web-02 becomes known through observation but has no channels;
	// nothing pre-binds either instance.
	sender := &fakeSender{ok: true}
	d := New(&staticRules{rules: []model.Rule{instanceRule}}, reg, recorder.NewMemoryRecorder(), sender)

	report := d.DispatchAlert(context.Background(), wechatTemplate(), twoAlertPayload)

	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, StatusSkipped, res.Status)
		assert.Equal(t, "no channels bound to instance", res.Error)
	}
	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, 0, report.ErrorCount)
	assert.Equal(t, 0, sender.count())
}

func TestDispatchAlertSendFailureIsolated(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	reg.BindChannels("web-01", channel(1, "ops", model.RobotWechat))
	reg.BindChannels("web-02", channel(1, "ops", model.RobotWechat))

	sender := &fakeSender{ok: false, errText: "invalid webhook url"}
	d := New(&staticRules{rules: []model.Rule{instanceRule}}, reg, recorder.NewMemoryRecorder(), sender, WithWorkers(1))

	report := d.DispatchAlert(context.Background(), wechatTemplate(), twoAlertPayload)

	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, 2, report.ErrorCount)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "web-01", report.Results[0].Instance)
	assert.Equal(t, "web-02", report.Results[1].Instance)
	for _, res := range report.Results {
		assert.Equal(t, "invalid webhook url", res.Error)
	}
}

func TestDispatchAlertNoRulesMatch(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	sender := &fakeSender{ok: true}
	d := New(&staticRules{rules: []model.Rule{instanceRule}}, reg, recorder.NewMemoryRecorder(), sender)

	report := d.DispatchAlert(context.Background(), wechatTemplate(), "free text without structure")

	assert.Equal(t, 0, report.TotalInstances)
	assert.Empty(t, report.Results)
	assert.Equal(t, 0, sender.count())
}

func TestDispatchAlertMappingGone(t *testing.T) {
	// observed fine, but unknown by the time channels are resolved
	sender := &fakeSender{ok: true}
	d := New(&staticRules{rules: []model.Rule{instanceRule}}, &fakeRegistry{known: false}, recorder.NewMemoryRecorder(), sender)

	payload := `{"alerts":[{"labels":{"instance":"web-01"}}]}`
	report := d.DispatchAlert(context.Background(), wechatTemplate(), payload)

	assert.Equal(t, 1, report.TotalInstances)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusSkipped, report.Results[0].Status)
	assert.Equal(t, "instance mapping not found", report.Results[0].Error)
	assert.Equal(t, 0, report.ErrorCount)
	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, 0, sender.count())
}

func TestDispatchAlertObserveFailure(t *testing.T) {
	sender := &fakeSender{ok: true}
	rec := recorder.NewMemoryRecorder()
	d := New(&staticRules{rules: []model.Rule{instanceRule}}, &fakeRegistry{observeErr: errors.New("db down")}, rec, sender)

	payload := `{"alerts":[{"labels":{"instance":"web-01"}}]}`
	report := d.DispatchAlert(context.Background(), wechatTemplate(), payload)

	// the identifier was extracted, so it still counts as processed
	assert.Equal(t, 1, report.TotalInstances)
	assert.Equal(t, []string{"web-01"}, report.ProcessedInstances)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusError, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Error, "registry update failed")
	assert.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, 0, sender.count())
	assert.Empty(t, rec.Records(), "failed observations are not audited")
}

func TestDispatchAlertRuleSnapshotError(t *testing.T) {
	d := New(&staticRules{err: errors.New("db down")}, registry.NewMemoryRegistry(), recorder.NewMemoryRecorder(), &fakeSender{ok: true})

	report := d.DispatchAlert(context.Background(), wechatTemplate(), twoAlertPayload)
	assert.Equal(t, 0, report.TotalInstances)
	assert.Empty(t, report.Results)
}

func TestDispatchDirect(t *testing.T) {
	sender := &fakeSender{ok: true}
	d := New(&staticRules{}, registry.NewMemoryRegistry(), recorder.NewMemoryRecorder(), sender)

	robot := &model.Robot{ID: 1, Name: "ops", Type: model.RobotWechat, WebhookURL: "http://robot"}
	res := d.DispatchDirect(context.Background(), wechatTemplate(), robot, map[string]any{"instance_name": "db-01"})
	assert.Equal(t, StatusSuccess, res.Status)
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "ops: alert: db-01", sender.sent[0])

	// vendor type mismatch is rejected before sending
	feishu := &model.Robot{ID: 2, Name: "fs", Type: model.RobotFeishu}
	res = d.DispatchDirect(context.Background(), wechatTemplate(), feishu, nil)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "does not match robot type")
	assert.Equal(t, 1, sender.count())
}

func TestSendRaw(t *testing.T) {
	sender := &fakeSender{ok: true}
	d := New(&staticRules{}, registry.NewMemoryRegistry(), recorder.NewMemoryRecorder(), sender)

	robot := &model.Robot{ID: 1, Name: "ops", Type: model.RobotWechat}
	res := d.SendRaw(context.Background(), robot, "connectivity check")
	assert.Equal(t, StatusSuccess, res.Status)
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "ops: connectivity check", sender.sent[0])
}

func TestEnrichPayload(t *testing.T) {
	data := enrichPayload(`{"severity":"critical"}`, "web-01", "r1")
	assert.Equal(t, "critical", data["severity"])
	assert.Equal(t, "web-01", data["instance_name"])
	assert.Equal(t, "r1", data["rule_name"])

	data = enrichPayload("plain text", "web-01", "r1")
	assert.Equal(t, "plain text", data["content"])
	assert.Equal(t, "web-01", data["instance_name"])
}
