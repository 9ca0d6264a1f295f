package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pushgate/internal/push/metrics"
	"pushgate/internal/push/model"
	"pushgate/internal/push/service/notifier"
	"pushgate/internal/push/service/recorder"
	"pushgate/internal/push/service/registry"
	"pushgate/internal/push/service/render"
	"pushgate/internal/push/service/rule"
)

// RuleSource provides the active-rule snapshot read once per dispatch pass.
type RuleSource interface {
	ListActiveRules(ctx context.Context) ([]model.Rule, error)
}

// MessageLogger records send attempts. Writes are best-effort.
type MessageLogger interface {
	InsertLog(ctx context.Context, ml *model.MessageLog) error
}

// Dispatcher runs the full routing pipeline: extract identifiers from a
// payload, observe and audit them, resolve their bound channels, and fan the
// alert out to every compatible channel. Individual rule or channel failures
// never abort the rest of the pass; the caller always gets a complete report.
type Dispatcher struct {
	engine   *rule.Engine
	rules    RuleSource
	registry registry.Registry
	recorder recorder.Recorder
	sender   notifier.Sender
	logs     MessageLogger

	workers     int
	sendTimeout time.Duration
}

type Option func(*Dispatcher)

// WithWorkers bounds concurrent notifier sends within one pass.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithSendTimeout bounds each outbound webhook call.
func WithSendTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

// WithMessageLogger attaches per-send audit logging.
func WithMessageLogger(l MessageLogger) Option {
	return func(d *Dispatcher) { d.logs = l }
}

func New(rules RuleSource, reg registry.Registry, rec recorder.Recorder, sender notifier.Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:      rule.NewEngine(),
		rules:       rules,
		registry:    reg,
		recorder:    rec,
		sender:      sender,
		workers:     16,
		sendTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchAlert routes one incoming payload through every active rule and
// returns the aggregated report. Nothing raises past this method.
func (d *Dispatcher) DispatchAlert(ctx context.Context, tpl *model.Template, rawPayload string) *Report {
	report := &Report{}
	metrics.DispatchPasses.Inc()

	rules, err := d.rules.ListActiveRules(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load active rule snapshot, dispatching nothing")
		return report
	}

	// Extraction phase: union of identifiers across all rules, first-seen
	// order, remembering which rule first produced each identifier. An
	// identifier stays in the union even when its registry update fails;
	// the failure becomes an error result and resolution skips it.
	seen := map[string]struct{}{}
	triggeredBy := map[string]string{}
	failed := map[string]bool{}
	var instances []string
	for i := range rules {
		r := &rules[i]
		values := d.engine.Extract(r, rawPayload)
		if len(values) == 0 {
			continue
		}
		metrics.ExtractedValues.WithLabelValues(r.Name).Add(float64(len(values)))

		for _, v := range values {
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				triggeredBy[v] = r.Name
				instances = append(instances, v)
			}
			if failed[v] {
				continue
			}
			if _, err := d.registry.Observe(ctx, r, v); err != nil {
				log.Error().Err(err).Str("instance", v).Str("rule", r.Name).Msg("instance observation failed")
				report.add(Result{Instance: v, Status: StatusError, Error: fmt.Sprintf("registry update failed: %v", err)})
				failed[v] = true
				continue
			}
			d.recorder.Append(ctx, v, r.Name, rawPayload, values)
		}
	}

	report.ProcessedInstances = instances
	report.TotalInstances = len(instances)

	// Resolution phase: decide the outcome slot of every (instance, channel)
	// pair up front so the report order stays deterministic.
	var tasks []sendTask
	for _, instance := range instances {
		if failed[instance] {
			continue
		}
		matched, bound, known, err := d.registry.ResolveChannels(ctx, instance, tpl.Type)
		switch {
		case err != nil:
			report.add(Result{Instance: instance, Status: StatusError, Error: fmt.Sprintf("channel resolution failed: %v", err)})
		case !known:
			report.add(Result{Instance: instance, Status: StatusSkipped, Error: "instance mapping not found"})
		case len(bound) == 0:
			report.add(Result{Instance: instance, Status: StatusSkipped, Error: "no channels bound to instance"})
		default:
			// compatible channels get a send attempt; incompatible ones each
			// get a type-mismatch error, attempted or not
			for _, ch := range matched {
				tasks = append(tasks, sendTask{instance: instance, ruleName: triggeredBy[instance], channel: ch})
			}
			for _, ch := range bound {
				if ch.Robot.Type == tpl.Type {
					continue
				}
				report.add(Result{
					Instance: instance,
					Channel:  ch.Name,
					Status:   StatusError,
					Error:    fmt.Sprintf("template type (%s) does not match robot type (%s)", tpl.Type, ch.Robot.Type),
				})
			}
		}
	}

	d.runSends(ctx, tpl, rawPayload, tasks, report)

	for _, res := range report.Results {
		metrics.DispatchResults.WithLabelValues(string(res.Status)).Inc()
	}
	log.Info().
		Int("instances", report.TotalInstances).
		Int("success", report.SuccessCount).
		Int("errors", report.ErrorCount).
		Msg("dispatch pass completed")
	return report
}

type sendTask struct {
	instance string
	ruleName string
	channel  model.Channel
}

// runSends fans tasks out to a bounded worker pool and appends one result per
// task. Result slots are preassigned so worker scheduling cannot reorder the
// report.
func (d *Dispatcher) runSends(ctx context.Context, tpl *model.Template, rawPayload string, tasks []sendTask, report *Report) {
	if len(tasks) == 0 {
		return
	}

	offset := len(report.Results)
	report.Results = append(report.Results, make([]Result, len(tasks))...)

	workers := d.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	taskCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskCh {
				report.Results[offset+i] = d.sendOne(ctx, tpl, rawPayload, tasks[i])
			}
		}()
	}
	for i := range tasks {
		taskCh <- i
	}
	close(taskCh)
	wg.Wait()

	for _, res := range report.Results[offset:] {
		report.count(res)
	}
}

// sendOne renders the template with the enriched payload and pushes it to the
// channel's robot under a bounded timeout.
func (d *Dispatcher) sendOne(ctx context.Context, tpl *model.Template, rawPayload string, task sendTask) Result {
	data := enrichPayload(rawPayload, task.instance, task.ruleName)

	content, missing, err := render.Render(tpl.Content, data)
	if err != nil {
		d.logSend(ctx, tpl, &task.channel.Robot, data, "", false, fmt.Sprintf("template render failed: %v", err))
		return Result{Instance: task.instance, Channel: task.channel.Name, Status: StatusError, Error: fmt.Sprintf("template render failed: %v", err)}
	}
	if len(missing) > 0 {
		log.Debug().Strs("missing", missing).Str("template", tpl.Name).Msg("template variables absent from payload")
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	ok, vendorErr := d.sender.Send(sendCtx, &task.channel.Robot, content)
	metrics.SendDuration.WithLabelValues(string(task.channel.Robot.Type)).Observe(time.Since(start).Seconds())

	d.logSend(ctx, tpl, &task.channel.Robot, data, content, ok, vendorErr)
	if !ok {
		return Result{Instance: task.instance, Channel: task.channel.Name, Status: StatusError, Error: vendorErr}
	}
	return Result{Instance: task.instance, Channel: task.channel.Name, Status: StatusSuccess}
}

// DispatchDirect sends to exactly one robot, bypassing the rule pipeline.
// The same render-then-send path and outcome shape apply.
func (d *Dispatcher) DispatchDirect(ctx context.Context, tpl *model.Template, robot *model.Robot, data map[string]any) Result {
	if tpl.Type != robot.Type {
		return Result{Channel: robot.Name, Status: StatusError,
			Error: fmt.Sprintf("template type (%s) does not match robot type (%s)", tpl.Type, robot.Type)}
	}

	content, _, err := render.Render(tpl.Content, data)
	if err != nil {
		d.logSend(ctx, tpl, robot, data, "", false, fmt.Sprintf("template render failed: %v", err))
		return Result{Channel: robot.Name, Status: StatusError, Error: fmt.Sprintf("template render failed: %v", err)}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	ok, vendorErr := d.sender.Send(sendCtx, robot, content)
	d.logSend(ctx, tpl, robot, data, content, ok, vendorErr)
	if !ok {
		metrics.DispatchResults.WithLabelValues(string(StatusError)).Inc()
		return Result{Channel: robot.Name, Status: StatusError, Error: vendorErr}
	}
	metrics.DispatchResults.WithLabelValues(string(StatusSuccess)).Inc()
	return Result{Channel: robot.Name, Status: StatusSuccess}
}

// SendRaw pushes literal text through a robot without a template, used by the
// robot test endpoint.
func (d *Dispatcher) SendRaw(ctx context.Context, robot *model.Robot, text string) Result {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	ok, vendorErr := d.sender.Send(sendCtx, robot, text)
	d.logSend(ctx, nil, robot, map[string]any{"test_message": text}, text, ok, vendorErr)
	if !ok {
		return Result{Channel: robot.Name, Status: StatusError, Error: vendorErr}
	}
	return Result{Channel: robot.Name, Status: StatusSuccess}
}

func (d *Dispatcher) logSend(ctx context.Context, tpl *model.Template, robot *model.Robot, data map[string]any, rendered string, ok bool, errMsg string) {
	if d.logs == nil {
		return
	}
	raw, _ := json.Marshal(data)
	ml := &model.MessageLog{
		ID:               uuid.NewString(),
		Content:          string(raw),
		RawData:          string(raw),
		FormattedContent: rendered,
		Status:           ok,
		ErrorMessage:     errMsg,
	}
	if tpl != nil {
		ml.TemplateID = tpl.ID
	}
	if robot != nil {
		ml.RobotID = robot.ID
	}
	if err := d.logs.InsertLog(ctx, ml); err != nil {
		log.Error().Err(err).Msg("message log write failed, continuing")
	}
}

// enrichPayload merges the original payload fields with the identifier and
// triggering rule name so templates can reference them.
func enrichPayload(rawPayload, instance, ruleName string) map[string]any {
	data := map[string]any{}
	var doc map[string]any
	if err := json.Unmarshal([]byte(rawPayload), &doc); err == nil {
		for k, v := range doc {
			data[k] = v
		}
	} else {
		data["content"] = rawPayload
	}
	data["instance_name"] = instance
	data["rule_name"] = ruleName
	return data
}
