package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"apocaliptyx/domain/events"
	"apocaliptyx/domain/utils"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	colorSteal  = 0xED4245
	colorShield = 0x3498DB
)

// WebhookExecutor is the slice of the discordgo session the announcer needs
type WebhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordAnnouncer posts steals and shields to a Discord channel webhook
type DiscordAnnouncer struct {
	executor  WebhookExecutor
	webhookID string
	token     string
	now       func() time.Time
}

// NewDiscordAnnouncer creates an announcer backed by a token-less discordgo session
func NewDiscordAnnouncer(webhookID, token string) (*DiscordAnnouncer, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Client = &http.Client{Timeout: 5 * time.Second}
	return newDiscordAnnouncer(session, webhookID, token), nil
}

func newDiscordAnnouncer(executor WebhookExecutor, webhookID, token string) *DiscordAnnouncer {
	return &DiscordAnnouncer{
		executor:  executor,
		webhookID: webhookID,
		token:     token,
		now:       time.Now,
	}
}

// HandleEvent is a local event handler for ScenarioStolen and ShieldApplied
func (a *DiscordAnnouncer) HandleEvent(_ context.Context, event events.Event) error {
	var embed *discordgo.MessageEmbed
	switch e := event.(type) {
	case events.ScenarioStolenEvent:
		embed = a.stolenEmbed(e)
	case events.ShieldAppliedEvent:
		embed = a.shieldEmbed(e)
	default:
		return nil
	}

	_, err := a.executor.WebhookExecute(a.webhookID, a.token, false, &discordgo.WebhookParams{
		Username: "Apocaliptyx",
		Embeds:   []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		return fmt.Errorf("failed to post %s announcement: %w", event.Type(), err)
	}

	log.WithField("eventType", event.Type()).Debug("Posted Discord announcement")
	return nil
}

func (a *DiscordAnnouncer) stolenEmbed(e events.ScenarioStolenEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Scenario stolen: %s", e.Title),
		Color:       colorSteal,
		Description: fmt.Sprintf("`%s` took the scenario from `%s`", shortID(e.NewHolderID.String()), shortID(e.FormerHolderID.String())),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Cost", Value: utils.FormatCoins(e.Cost), Inline: true},
			{Name: "Compensation", Value: utils.FormatCoins(e.Compensation), Inline: true},
			{Name: "Times stolen", Value: fmt.Sprintf("%d", e.StealCount), Inline: true},
		},
		Timestamp: a.now().UTC().Format(time.RFC3339),
	}
}

func (a *DiscordAnnouncer) shieldEmbed(e events.ShieldAppliedEvent) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Shield raised: %s", e.Title),
		Color:       colorShield,
		Description: fmt.Sprintf("`%s` protected their scenario", shortID(e.HolderID.String())),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Tier", Value: string(e.Tier), Inline: true},
			{Name: "Protected for", Value: utils.FormatRemaining(e.ProtectedUntil.Sub(a.now())), Inline: true},
			{Name: "Expires", Value: fmt.Sprintf("<t:%d:R>", e.ProtectedUntil.Unix()), Inline: true},
		},
		Timestamp: a.now().UTC().Format(time.RFC3339),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
