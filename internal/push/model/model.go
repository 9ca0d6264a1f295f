package model

import "time"

// RobotType enumerates the supported chat-bot vendors.
type RobotType string

const (
	RobotWechat   RobotType = "wechat"
	RobotFeishu   RobotType = "feishu"
	RobotDingtalk RobotType = "dingtalk"
)

// Valid reports whether t is one of the supported vendors.
func (t RobotType) Valid() bool {
	switch t {
	case RobotWechat, RobotFeishu, RobotDingtalk:
		return true
	}
	return false
}

// RuleKind selects the extraction strategy of a distribution rule.
type RuleKind string

const (
	RuleKindJSON   RuleKind = "json"
	RuleKindString RuleKind = "string"
)

// Rule is an operator-configured extraction rule. Expression is a JSON field
// path for RuleKindJSON (e.g. "alerts[].labels.instance") or a pattern with
// {{name}} placeholders for RuleKindString.
type Rule struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Kind        RuleKind  `json:"type"`
	Description string    `json:"description"`
	Expression  string    `json:"expression"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Robot is an outbound webhook target.
type Robot struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	EnglishName string    `json:"english_name"`
	WebhookURL  string    `json:"webhook_url"`
	Type        RobotType `json:"robot_type"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Template is a message template bound to one vendor type.
type Template struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Type      RobotType `json:"robot_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Channel pairs one robot with one template. The (robot, template) pair is
// unique: a channel fully determines where a message goes and how it is
// rendered.
type Channel struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Robot       Robot     `json:"robot"`
	Template    Template  `json:"template"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InstanceMapping binds one extracted identifier to its distribution channels
// and accumulates alert statistics. Created on first observation, updated on
// every subsequent one, never deleted by the pipeline itself.
type InstanceMapping struct {
	Instance      string     `json:"instance_name"`
	Channels      []Channel  `json:"channels"`
	SourceRule    *Rule      `json:"source_rule,omitempty"`
	AlertCount    int64      `json:"alert_count"`
	LastAlertTime *time.Time `json:"last_alert_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AlertRecord is one append-only audit row per (identifier, rule) observation.
// Content keeps a bounded preview of the payload; RawData keeps it whole.
type AlertRecord struct {
	ID              string    `json:"id"`
	Instance        string    `json:"instance_name"`
	RuleName        string    `json:"rule_name"`
	Content         string    `json:"alert_content"`
	RawData         string    `json:"raw_data"`
	ExtractedValues []string  `json:"extracted_values"`
	AlertTime       time.Time `json:"alert_time"`
	Processed       bool      `json:"processed"`
}

// MessageLog records one send attempt through a robot.
type MessageLog struct {
	ID               string    `json:"id"`
	TemplateID       int64     `json:"template_id,omitempty"`
	RobotID          int64     `json:"robot_id,omitempty"`
	Content          string    `json:"content"`
	RawData          string    `json:"raw_data"`
	FormattedContent string    `json:"formatted_content"`
	Status           bool      `json:"status"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
