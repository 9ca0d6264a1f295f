package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"pushgate/internal/push/model"
)

// Sender delivers one rendered message to a robot's webhook. It reports
// failure through the return values and never panics on transport errors.
type Sender interface {
	Send(ctx context.Context, robot *model.Robot, content string) (ok bool, vendorErr string)
}

// WebhookSender posts vendor-specific JSON bodies to chat-bot webhooks.
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{client: &http.Client{Timeout: timeout}}
}

func (s *WebhookSender) Send(ctx context.Context, robot *model.Robot, content string) (bool, string) {
	payload, parse := vendorPayload(robot.Type, content)
	if payload == nil {
		return false, fmt.Sprintf("unsupported robot type: %s", robot.Type)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("marshal webhook payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, robot.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("build webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("robot", robot.Name).Str("type", string(robot.Type)).Msg("webhook push failed")
		return false, err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Sprintf("webhook returned status %d: %s", resp.StatusCode, string(data))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false, fmt.Sprintf("read webhook response: %v", err)
	}
	return parse(data)
}

type parseFunc func([]byte) (bool, string)

// vendorPayload builds the message body each vendor expects and pairs it with
// the matching response check.
func vendorPayload(t model.RobotType, content string) (any, parseFunc) {
	switch t {
	case model.RobotWechat:
		return map[string]any{
			"msgtype":  "markdown",
			"markdown": map[string]any{"content": content},
		}, parseErrcode
	case model.RobotDingtalk:
		return map[string]any{
			"msgtype":  "markdown",
			"markdown": map[string]any{"title": "消息通知", "text": content},
		}, parseErrcode
	case model.RobotFeishu:
		return map[string]any{
			"msg_type": "interactive",
			"card": map[string]any{
				"config":   map[string]any{"wide_screen_mode": true},
				"elements": []any{map[string]any{"tag": "markdown", "content": content}},
			},
		}, parseFeishu
	default:
		return nil, nil
	}
}

// parseErrcode handles the wechat/dingtalk response shape: errcode 0 is success.
func parseErrcode(data []byte) (bool, string) {
	var res struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return false, fmt.Sprintf("decode webhook response: %v", err)
	}
	if res.ErrCode == 0 {
		return true, ""
	}
	return false, res.ErrMsg
}

// parseFeishu handles the feishu response shape: StatusCode 0 is success.
func parseFeishu(data []byte) (bool, string) {
	var res struct {
		StatusCode    int    `json:"StatusCode"`
		StatusMessage string `json:"StatusMessage"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return false, fmt.Sprintf("decode webhook response: %v", err)
	}
	if res.StatusCode == 0 {
		return true, ""
	}
	return false, res.StatusMessage
}
