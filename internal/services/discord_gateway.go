package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"rolegate/internal/models"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrRoleNotFound   = errors.New("role not found")
	ErrGrantFailed    = errors.New("role grant failed")
)

// RoleGrantGateway выдаёт роль участнику сервера и возвращает снимок его профиля.
type RoleGrantGateway interface {
	GrantRole(ctx context.Context, userID, roleID string) (*models.MemberProfile, error)
}

// discordAPI: подмножество *discordgo.Session, которое нужно шлюзу.
type discordAPI interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

type DiscordGateway struct {
	api     discordAPI
	guildID string
}

func NewDiscordGateway(api discordAPI, guildID string) *DiscordGateway {
	return &DiscordGateway{api: api, guildID: guildID}
}

func (g *DiscordGateway) GrantRole(ctx context.Context, userID, roleID string) (*models.MemberProfile, error) {
	opt := discordgo.WithContext(ctx)

	member, err := g.api.GuildMember(g.guildID, userID, opt)
	if err != nil {
		if isDiscordNotFound(err, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("%w: fetch member: %v", ErrGrantFailed, err)
	}
	if member == nil || member.User == nil {
		return nil, ErrMemberNotFound
	}

	roles, err := g.api.GuildRoles(g.guildID, opt)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch roles: %v", ErrGrantFailed, err)
	}
	if !hasRole(roles, roleID) {
		return nil, ErrRoleNotFound
	}

	profile := memberProfile(member)
	for _, id := range member.Roles {
		if id == roleID {
			log.Printf("[discord][grant] user_id=%s already has role_id=%s", userID, roleID)
			return profile, nil
		}
	}

	if err := g.api.GuildMemberRoleAdd(g.guildID, userID, roleID, opt); err != nil {
		switch {
		case isDiscordNotFound(err, discordgo.ErrCodeUnknownMember):
			return nil, ErrMemberNotFound
		case isDiscordNotFound(err, discordgo.ErrCodeUnknownRole):
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrGrantFailed, err)
	}
	log.Printf("[discord][grant] ok user_id=%s role_id=%s", userID, roleID)
	return profile, nil
}

func hasRole(roles []*discordgo.Role, roleID string) bool {
	for _, r := range roles {
		if r != nil && r.ID == roleID {
			return true
		}
	}
	return false
}

func isDiscordNotFound(err error, codes ...int) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil {
		for _, c := range codes {
			if rest.Message.Code == c {
				return true
			}
		}
		return false
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}

func memberProfile(m *discordgo.Member) *models.MemberProfile {
	p := &models.MemberProfile{
		UserID:      m.User.ID,
		Username:    m.User.Username,
		DisplayName: displayName(m),
		AvatarURL:   m.User.AvatarURL(""),
	}
	if m.User.Email != "" {
		e := m.User.Email
		p.Email = &e
	}
	return p
}

func displayName(m *discordgo.Member) string {
	switch {
	case m.Nick != "":
		return m.Nick
	case m.User.GlobalName != "":
		return m.User.GlobalName
	}
	return m.User.Username
}
