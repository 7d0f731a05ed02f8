package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Bot держит долгоживущую сессию Discord. Выдача ролей идёт только через неё.
type Bot struct {
	Session *discordgo.Session
	GuildID string
	Handler *Handler

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return s, nil
}

func New(session *discordgo.Session, guildID string, h *Handler) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{Session: session, GuildID: guildID, Handler: h, ctx: ctx, cancel: cancel}
}

// Context отменяется при закрытии сессии.
func (b *Bot) Context() context.Context { return b.ctx }

func (b *Bot) Open() error {
	b.Session.AddHandler(b.onReady)
	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
		defer cancel()
		b.Handler.Handle(ctx, s, i)
	})
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, b.GuildID, Commands); err != nil {
		log.Printf("[bot][ready][err] command sync: %v", err)
		return
	}
	log.Printf("[bot][ready] logged in as %s#%s, %d commands synced", r.User.Username, r.User.Discriminator, len(Commands))
}

func (b *Bot) Close() error {
	b.cancel()
	return b.Session.Close()
}

// StateAPI берёт участника из кэша состояния сессии, при промахе идёт в REST.
type StateAPI struct {
	*discordgo.Session
}

func (a StateAPI) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	if a.State != nil {
		if m, err := a.State.Member(guildID, userID); err == nil && m.User != nil {
			return m, nil
		}
	}
	return a.Session.GuildMember(guildID, userID, options...)
}
