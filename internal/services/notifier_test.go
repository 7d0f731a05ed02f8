package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"rolegate/internal/models"
)

type fakeChannel struct {
	mu     sync.Mutex
	embeds map[string][]*discordgo.MessageEmbed
}

func (f *fakeChannel) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embeds == nil {
		f.embeds = map[string][]*discordgo.MessageEmbed{}
	}
	f.embeds[channelID] = append(f.embeds[channelID], embed)
	return &discordgo.Message{ID: "1"}, nil
}

func TestDiscordLogNotifierPostsEmbed(t *testing.T) {
	ch := &fakeChannel{}
	n := NewDiscordLogNotifier(ch, "555")

	n.NotifyOutcome(context.Background(),
		models.VerificationRequest{UserID: "42", SourceAddress: "10.0.0.1"},
		models.VerificationResult{State: models.StateGrantError, GrantError: models.GrantRoleNotFound},
	)

	got := ch.embeds["555"]
	if len(got) != 1 {
		t.Fatalf("expected one embed, got %d", len(got))
	}
	if !strings.Contains(got[0].Title, "role_not_found") || got[0].Color != colorRed {
		t.Fatalf("unexpected embed %+v", got[0])
	}
}

func TestDiscordLogNotifierDisabledWithoutChannel(t *testing.T) {
	ch := &fakeChannel{}
	NewDiscordLogNotifier(ch, "").NotifyOutcome(context.Background(), models.VerificationRequest{}, models.VerificationResult{})
	if len(ch.embeds) != 0 {
		t.Fatal("no embed expected without channel")
	}
}

func newTelegramStub(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"gate","username":"gate_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			mu.Lock()
			sent = append(sent, r.Form.Get("text"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100,"type":"group"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &sent
}

func TestTelegramServiceNotifiesOnlyActionableOutcomes(t *testing.T) {
	srv, sent := newTelegramStub(t)
	tg, err := NewTelegramServiceWithEndpoint("token", -100, srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("telegram init: %v", err)
	}
	ctx := context.Background()
	req := models.VerificationRequest{UserID: "42", SourceAddress: "63.1.2.3"}

	tg.NotifyOutcome(ctx, req, models.VerificationResult{State: models.StateRecorded})
	tg.NotifyOutcome(ctx, req, models.VerificationResult{State: models.StateChallengeFailed})
	tg.NotifyOutcome(ctx, req, models.VerificationResult{State: models.StateBlocked})
	tg.NotifyOutcome(ctx, req, models.VerificationResult{State: models.StateRecorded, PersistErr: errors.New("db down")})

	if len(*sent) != 2 {
		t.Fatalf("expected two alerts, got %d: %v", len(*sent), *sent)
	}
	if !strings.Contains((*sent)[0], "Blocked") || !strings.Contains((*sent)[0], "63.1.2.3") {
		t.Fatalf("unexpected blocked alert %q", (*sent)[0])
	}
	if !strings.Contains((*sent)[1], "db down") {
		t.Fatalf("unexpected persist alert %q", (*sent)[1])
	}
}

func TestTelegramServiceSkipsWithoutChat(t *testing.T) {
	var tg *TelegramService
	if err := tg.SendMessage(1, "x"); err != nil {
		t.Fatalf("nil service must skip, got %v", err)
	}
}

func TestMultiNotifierFansOut(t *testing.T) {
	a, b := &fakeChannel{}, &fakeChannel{}
	m := MultiNotifier{NewDiscordLogNotifier(a, "1"), nil, NewDiscordLogNotifier(b, "2")}
	m.NotifyOutcome(context.Background(), models.VerificationRequest{UserID: "42"}, models.VerificationResult{State: models.StateRecorded})
	if len(a.embeds["1"]) != 1 || len(b.embeds["2"]) != 1 {
		t.Fatal("expected both notifiers to receive the outcome")
	}
}
