// Package notifications posts Slack alerts for completed audits and
// captured leads.
package notifications

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/SRK-Yoom/siteaudit/internal/audit"
	"github.com/SRK-Yoom/siteaudit/internal/leads"
	"github.com/SRK-Yoom/siteaudit/internal/util"
)

// Slack posts messages to an incoming webhook. An empty webhook URL
// disables delivery, so callers never need to guard.
type Slack struct {
	webhookURL string
	appURL     string
}

// NewSlack creates a webhook notifier. appURL is used for report links
// in messages and may be empty.
func NewSlack(webhookURL, appURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		appURL:     strings.TrimRight(appURL, "/"),
	}
}

// Enabled reports whether a webhook is configured.
func (s *Slack) Enabled() bool {
	return s != nil && s.webhookURL != ""
}

// AuditCompleted posts a summary of a finished audit. Delivery is best
// effort: failures are logged, never returned, so a Slack outage can't
// affect the audit response.
func (s *Slack) AuditCompleted(ctx context.Context, result *audit.Result, meta *util.RequestMeta) {
	if !s.Enabled() || result == nil {
		return
	}

	emoji := ":white_check_mark:"
	switch {
	case result.Score < 50:
		emoji = ":x:"
	case result.Score < 80:
		emoji = ":warning:"
	}

	title := fmt.Sprintf("Audit complete: %s scored %d/100", result.Health.Domain, result.Score)

	var lines []string
	if h := result.Health; h.CriticalIssues+h.HighIssues+h.MediumIssues > 0 {
		lines = append(lines, fmt.Sprintf("%d critical, %d high, %d medium issues",
			h.CriticalIssues, h.HighIssues, h.MediumIssues))
	}
	if len(result.Recommendations) > 0 {
		lines = append(lines, fmt.Sprintf("Top issue: %s", result.Recommendations[0].Title))
	}
	if line := visitorLine(meta); line != "" {
		lines = append(lines, line)
	}

	blocks := messageBlocks(emoji, title, strings.Join(lines, "\n"))
	if s.appURL != "" {
		blocks = append(blocks, linkBlock(fmt.Sprintf("%s/?url=%s", s.appURL, url.QueryEscape(result.URL)), "View report"))
	}

	s.post(ctx, &slack.WebhookMessage{
		Text:   title,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}, result.Health.Domain)
}

// LeadCaptured posts a new-lead alert. Best effort, like
// AuditCompleted.
func (s *Slack) LeadCaptured(ctx context.Context, lead *leads.Lead) {
	if !s.Enabled() || lead == nil {
		return
	}

	title := fmt.Sprintf("New lead: %s", lead.Email)

	var lines []string
	if lead.Website != "" {
		lines = append(lines, fmt.Sprintf("Website: %s", lead.Website))
	}
	if lead.Score > 0 {
		lines = append(lines, fmt.Sprintf("Audit score: %d/100", lead.Score))
	}
	if lead.FreeProvider {
		lines = append(lines, "Free email provider")
	}
	if line := visitorLine(lead.Meta); line != "" {
		lines = append(lines, line)
	}

	s.post(ctx, &slack.WebhookMessage{
		Text:   title,
		Blocks: &slack.Blocks{BlockSet: messageBlocks(":tada:", title, strings.Join(lines, "\n"))},
	}, lead.Email)
}

func (s *Slack) post(ctx context.Context, msg *slack.WebhookMessage, subject string) {
	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("Failed to post Slack notification")
		return
	}
	log.Debug().Str("subject", subject).Msg("Slack notification sent")
}

func messageBlocks(emoji, title, message string) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("%s *%s*", emoji, title), false, false),
			nil,
			nil,
		),
	}

	if message != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", message, false, false),
			nil,
			nil,
		))
	}

	return blocks
}

func linkBlock(href, label string) slack.Block {
	return slack.NewSectionBlock(
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("<%s|%s>", href, label), false, false),
		nil,
		nil,
	)
}

// visitorLine formats request metadata for the message body, e.g.
// "Chrome on macOS from Melbourne, Victoria, Australia".
func visitorLine(meta *util.RequestMeta) string {
	if meta == nil {
		return ""
	}
	switch {
	case meta.Device != "" && meta.Location != "":
		return fmt.Sprintf("%s from %s", meta.Device, meta.Location)
	case meta.Device != "":
		return meta.Device
	case meta.Location != "":
		return fmt.Sprintf("Visitor from %s", meta.Location)
	default:
		return ""
	}
}
