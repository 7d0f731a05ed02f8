package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"rolegate/internal/models"
)

// Notifier сообщает об исходе проверки вне HTTP-ответа (лог-канал, админ-чат).
type Notifier interface {
	NotifyOutcome(ctx context.Context, req models.VerificationRequest, res models.VerificationResult)
}

type MultiNotifier []Notifier

func (m MultiNotifier) NotifyOutcome(ctx context.Context, req models.VerificationRequest, res models.VerificationResult) {
	for _, n := range m {
		if n != nil {
			n.NotifyOutcome(ctx, req, res)
		}
	}
}

type channelSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordLogNotifier пишет исход в лог-канал сервера.
type DiscordLogNotifier struct {
	api       channelSender
	channelID string
}

func NewDiscordLogNotifier(api channelSender, channelID string) *DiscordLogNotifier {
	return &DiscordLogNotifier{api: api, channelID: channelID}
}

const (
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c
	colorGrey  = 0x95a5a6
)

func (n *DiscordLogNotifier) NotifyOutcome(ctx context.Context, req models.VerificationRequest, res models.VerificationResult) {
	if n == nil || n.channelID == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title: "Verification: " + outcomeLabel(res),
		Color: outcomeColor(res.State),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: "<@" + req.UserID + "> (" + req.UserID + ")", Inline: false},
			{Name: "IP", Value: orDash(req.SourceAddress), Inline: true},
		},
	}
	if res.Profile != nil && res.Profile.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: res.Profile.AvatarURL}
	}
	if res.PersistErr != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Record", Value: "not saved: " + res.PersistErr.Error()})
	}
	if _, err := n.api.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		log.Printf("[discord][log][err] channel=%s: %v", n.channelID, err)
	}
}

func outcomeLabel(res models.VerificationResult) string {
	if res.State == models.StateGrantError {
		return fmt.Sprintf("%s (%s)", res.State, res.GrantError)
	}
	return string(res.State)
}

func outcomeColor(s models.VerificationState) int {
	switch s {
	case models.StateRecorded:
		return colorGreen
	case models.StateBlocked, models.StateGrantError:
		return colorRed
	}
	return colorGrey
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}
