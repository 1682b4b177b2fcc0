// Package notify pushes job summaries to operators over Discord webhooks
// and email. Both notifiers are optional; a nil notifier is a no-op.
package notify

import (
	"fmt"
	"regexp"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"license-watch-go/db"
)

var webhookURLRe = regexp.MustCompile(`discord\.com/api/webhooks/(\d+)/([A-Za-z0-9._-]+)`)

// DiscordNotifier posts verification job summaries to a channel webhook.
type DiscordNotifier struct {
	session      *discordgo.Session
	webhookID    string
	webhookToken string
}

// NewDiscordNotifier parses a webhook URL; returns nil when unconfigured.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	if webhookURL == "" {
		return nil
	}
	m := webhookURLRe.FindStringSubmatch(webhookURL)
	if m == nil {
		log.Warn().Msg("DISCORD_WEBHOOK_URL does not look like a webhook URL; discord notifications disabled")
		return nil
	}
	// Webhook execution needs no bot token.
	session, err := discordgo.New("")
	if err != nil {
		log.Warn().Err(err).Msg("discord session init failed; discord notifications disabled")
		return nil
	}
	return &DiscordNotifier{session: session, webhookID: m[1], webhookToken: m[2]}
}

// JobSummary posts the final numbers for one sweep.
func (n *DiscordNotifier) JobSummary(job *db.Job) error {
	if n == nil {
		return nil
	}

	color := 0x2ECC71 // green
	title := "License verification sweep completed"
	if job.Status == db.JobFailed {
		color = 0xE74C3C
		title = "License verification sweep FAILED"
	} else if job.ErrorCount > 0 {
		color = 0xF39C12
	}

	duration := "n/a"
	if job.CompletedAt != nil {
		duration = job.CompletedAt.Sub(job.StartedAt).Round(time.Second).String()
	}

	embed := &discordgo.MessageEmbed{
		Title: title,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Job", Value: job.ID, Inline: false},
			{Name: "Total licenses", Value: fmt.Sprintf("%d", job.TotalLicenses), Inline: true},
			{Name: "Processed", Value: fmt.Sprintf("%d", job.Processed), Inline: true},
			{Name: "Auto-verified", Value: fmt.Sprintf("%d", job.AutoVerified), Inline: true},
			{Name: "Review tasks", Value: fmt.Sprintf("%d", job.TasksCreated), Inline: true},
			{Name: "Errors", Value: fmt.Sprintf("%d", job.ErrorCount), Inline: true},
			{Name: "Duration", Value: duration, Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "License Watch"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_, err := n.session.WebhookExecute(n.webhookID, n.webhookToken, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		return fmt.Errorf("notify: webhook execute: %w", err)
	}
	return nil
}
