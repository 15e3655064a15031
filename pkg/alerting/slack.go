package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/metrics"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Notifier delivers failure alerts to a Slack incoming webhook. Delivery is
// fire and forget: failures are logged and counted, never returned, so a
// broken webhook cannot stall the monitoring loop.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// Notify posts a header block with the title and a markdown section with the
// message body.
func (n *Notifier) Notify(ctx context.Context, title, message string) {
	if !n.Enabled() {
		logging.Debugf(ctx, "Slack webhook not configured, skipping notification")
		return
	}

	payload := slackPayload{
		Text: title,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: title}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: message}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logging.Errorf(ctx, "Failed to marshal Slack payload: %v", err)
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		logging.Errorf(ctx, "Failed to build Slack request: %v", err)
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logging.Errorf(ctx, "Failed to send Slack notification: %v", err)
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Warnf(ctx, "Slack notification failed: HTTP %d", resp.StatusCode)
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		return
	}

	logging.Infof(ctx, "Slack notification sent")
	metrics.AlertsTotal.WithLabelValues("sent").Inc()
}
