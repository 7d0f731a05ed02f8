package bot

import (
	"context"
	"log"

	"github.com/bwmarrin/discordgo"

	"rolegate/internal/models"
)

const (
	verifyButtonID = "rolegate:verify"

	colorDarkGrey = 0x607d8b
	colorTeal     = 0x1abc9c
)

var (
	manageRoles   int64 = discordgo.PermissionManageRoles
	administrator int64 = discordgo.PermissionAdministrator
)

// Commands: слэш-команды, которые бот регистрирует на сервере.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:                     "button",
		Description:              "Post the verification button.",
		DefaultMemberPermissions: &manageRoles,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Embed title", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Embed description", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "image_url", Description: "Image URL (optional)"},
		},
	},
	{
		Name:                     "user",
		Description:              "Show stored verification data for a user.",
		DefaultMemberPermissions: &administrator,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to look up", Required: true},
		},
	},
}

type linkIssuer interface {
	Issue(userID string) (string, error)
}

type recordLookup interface {
	Lookup(ctx context.Context, userID string) (*models.VerificationRecord, error)
}

type responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Handler разбирает взаимодействия: /button, /user и нажатие кнопки проверки.
type Handler struct {
	Issuer  linkIssuer
	Records recordLookup
}

func (h *Handler) Handle(ctx context.Context, r responder, i *discordgo.InteractionCreate) {
	var resp *discordgo.InteractionResponse
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "button":
			resp = buttonResponse(data.Options)
		case "user":
			resp = h.userResponse(ctx, data.Options)
		default:
			return
		}
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID != verifyButtonID {
			return
		}
		resp = h.issueResponse(interactionUserID(i))
	default:
		return
	}
	if err := r.InteractionRespond(i.Interaction, resp, discordgo.WithContext(ctx)); err != nil {
		log.Printf("[bot][respond][err] type=%d: %v", i.Type, err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func buttonResponse(opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionResponse {
	o := optionMap(opts)
	embed := &discordgo.MessageEmbed{Color: colorDarkGrey}
	if v, ok := o["title"]; ok {
		embed.Title = v.StringValue()
	}
	if v, ok := o["description"]; ok {
		embed.Description = v.StringValue()
	}
	if v, ok := o["image_url"]; ok && v.StringValue() != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: v.StringValue()}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Verify", Style: discordgo.SecondaryButton, CustomID: verifyButtonID},
				}},
			},
		},
	}
}

// issueResponse: персональная одноразовая ссылка, видна только нажавшему.
func (h *Handler) issueResponse(userID string) *discordgo.InteractionResponse {
	link, err := h.Issuer.Issue(userID)
	if err != nil {
		log.Printf("[bot][issue][err] user_id=%s: %v", userID, err)
		return ephemeral("Could not create a verification link. Please try again.")
	}
	resp := ephemeral("Open the link below to finish verification. It works once and expires soon.")
	resp.Data.Components = []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Verify", Style: discordgo.LinkButton, URL: link},
		}},
	}
	return resp
}

func (h *Handler) userResponse(ctx context.Context, opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionResponse {
	o, ok := optionMap(opts)["user"]
	if !ok {
		return ephemeral("User not found.")
	}
	userID := o.UserValue(nil).ID

	rec, err := h.Records.Lookup(ctx, userID)
	if err != nil {
		log.Printf("[bot][user][err] user_id=%s: %v", userID, err)
		return ephemeral("Lookup failed. Please try again.")
	}
	if rec == nil {
		return ephemeral("No verification data found for this user.")
	}

	email := "—"
	if rec.Email != nil && *rec.Email != "" {
		email = *rec.Email
	}
	embed := &discordgo.MessageEmbed{
		Title: "User DATA",
		Color: colorTeal,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Username", Value: rec.Username},
			{Name: "Display Name", Value: rec.DisplayName},
			{Name: "Email", Value: email},
			{Name: "IP", Value: rec.SourceAddress},
			{Name: "Verified", Value: rec.VerifiedAt.UTC().Format("2006-01-02 15:04 MST")},
		},
	}
	if rec.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: rec.AvatarURL}
	}
	resp := ephemeral("")
	resp.Data.Embeds = []*discordgo.MessageEmbed{embed}
	return resp
}

func ephemeral(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}
