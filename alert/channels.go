package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Channel 告警投递通道。投递是尽力而为的：
// 引擎先持久化告警，通道失败只影响通知，不影响记录。
type Channel interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// LogChannel 把告警写入结构化日志，用作兜底通道。
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, a Alert) error {
	c.logger.Warn("ALERT",
		zap.String("level", string(a.Level)),
		zap.String("category", string(a.Category)),
		zap.String("title", a.Title),
		zap.String("message", a.Message))
	return nil
}

// WebhookChannel 把告警 JSON POST 到外部端点。
type WebhookChannel struct {
	url    string
	client *http.Client
}

func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SlackChannel 通过 incoming webhook 投递到 Slack。
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// slackColors 按级别着色消息侧边
var slackColors = map[Level]string{
	LevelInfo:     "#36a64f",
	LevelWarning:  "#ffcc00",
	LevelError:    "#ff6600",
	LevelCritical: "#ff0000",
}

func (c *SlackChannel) Send(ctx context.Context, a Alert) error {
	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{{
			"color": slackColors[a.Level],
			"title": fmt.Sprintf("[%s] %s", a.Level, a.Title),
			"text":  a.Message,
			"ts":    a.CreatedAt.Unix(),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
