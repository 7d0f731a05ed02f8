package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
server:
  public_url: "https://verify.example.com/"
database:
  url: "postgres://localhost/rolegate"
discord:
  token: "bot-token"
  guild_id: "100"
  role_id: "200"
recaptcha:
  secret: "captcha-secret"
  timeout: 3s
challenge:
  secret: "challenge-secret"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.PublicURL != "https://verify.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Server.PublicURL)
	}
	if cfg.Recaptcha.Timeout != 3*time.Second {
		t.Fatalf("expected 3s recaptcha timeout, got %s", cfg.Recaptcha.Timeout)
	}
	if cfg.Challenge.TTL != 15*time.Minute {
		t.Fatalf("expected default ttl, got %s", cfg.Challenge.TTL)
	}
	if strings.Join(cfg.Abuse.Denylist, ",") != "63.,185.,188." {
		t.Fatalf("unexpected default denylist %v", cfg.Abuse.Denylist)
	}
	if cfg.OAuthEnabled() {
		t.Fatal("oauth must be disabled without client credentials")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ROLE_ID", "300")
	t.Setenv("DENYLIST", "10.,11.")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected env port, got %d", cfg.Server.Port)
	}
	if cfg.Discord.RoleID != "300" {
		t.Fatalf("expected env role id, got %q", cfg.Discord.RoleID)
	}
	if len(cfg.Abuse.Denylist) != 2 || cfg.Abuse.Denylist[1] != "11." {
		t.Fatalf("unexpected denylist %v", cfg.Abuse.Denylist)
	}
	if cfg.Telegram.ChatID != -100123 {
		t.Fatalf("unexpected telegram chat id %d", cfg.Telegram.ChatID)
	}
}

func TestLoadReportsMissingValues(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, key := range []string{"discord.token", "database.url", "challenge.secret"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error, got %v", key, err)
		}
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "eighty")
	if _, err := Load(writeConfig(t, minimalYAML)); err == nil {
		t.Fatal("expected PORT parse error")
	}
}
