// Package notification posts approval-required alerts to Slack: the one
// concrete realization of the pipeline's abstract downstream "Answerer"
// sink, triggered when the orchestrator sees a critical-risk record that
// requires manual approval. No call site for this dependency survived
// the retrieval pack's trimming of the teacher repo, so the wiring here
// follows slack-go/slack's own documented bot-token client rather than a
// teacher file.
package notification

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// Notifier posts alerts to a single Slack channel. A Notifier built with
// an empty token is a valid no-op, so callers can wire one
// unconditionally and only pay for the API call when Slack is actually
// configured.
type Notifier struct {
	client  *slack.Client
	channel string
	log     *logrus.Logger
}

// New builds a Notifier posting to channel with a bot token. An empty
// token yields a Notifier whose Notify calls silently no-op.
func New(token, channel string, log *logrus.Logger) *Notifier {
	var client *slack.Client
	if token != "" {
		client = slack.New(token)
	}
	return &Notifier{client: client, channel: channel, log: log}
}

// NotifyApprovalRequired posts a single alert naming the stage, record
// id, and risk level that triggered it. A posting failure is logged and
// swallowed — a broken notification channel must never fail the pipeline
// request that triggered it.
func (n *Notifier) NotifyApprovalRequired(ctx context.Context, stage, recordID, riskLevel, summary string) {
	if n == nil || n.client == nil {
		return
	}

	text := fmt.Sprintf(":rotating_light: *%s* flagged %s risk requiring approval (id=%s)\n%s", stage, riskLevel, recordID, summary)
	if _, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false)); err != nil {
		n.log.WithFields(logrus.Fields{
			"component": "notification",
			"stage":     stage,
			"record_id": recordID,
			"error":     err.Error(),
		}).Warn("failed to post approval notification")
	}
}
