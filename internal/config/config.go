package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

var defaultDenylist = []string{"63.", "185.", "188."}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	PublicURL    string        `yaml:"public_url"`
	HomeURL      string        `yaml:"home_url"`
	ResponseWait time.Duration `yaml:"response_wait"`
	TrustedProxy []string      `yaml:"trusted_proxies"`
}

type DiscordConfig struct {
	Token        string        `yaml:"token"`
	GuildID      string        `yaml:"guild_id"`
	RoleID       string        `yaml:"role_id"`
	LogChannelID string        `yaml:"log_channel_id"`
	GrantTimeout time.Duration `yaml:"grant_timeout"`
	QueueShards  int           `yaml:"queue_shards"`
}

type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
}

type RecaptchaConfig struct {
	SiteKey   string        `yaml:"site_key"`
	Secret    string        `yaml:"secret"`
	VerifyURL string        `yaml:"verify_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type ChallengeConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Discord   DiscordConfig   `yaml:"discord"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Recaptcha RecaptchaConfig `yaml:"recaptcha"`
	Challenge ChallengeConfig `yaml:"challenge"`
	Abuse     struct {
		Denylist []string `yaml:"denylist"`
	} `yaml:"abuse"`
	Support struct {
		Invite string `yaml:"invite"`
	} `yaml:"support"`
	Admin struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"admin"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// LoadConfig читает config/config.yaml (+ .env) и паникует при ошибке.
func LoadConfig() *Config {
	cfg, err := Load(DefaultPath)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

// Load decodes the YAML file at path (a missing file is allowed), applies
// environment overrides and defaults, and validates required values.
func Load(path string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Discord.Token, "DISCORD_TOKEN")
	setString(&c.Discord.GuildID, "GUILD_ID")
	setString(&c.Discord.RoleID, "ROLE_ID")
	setString(&c.Discord.LogChannelID, "LOG_CHANNEL_ID")
	setString(&c.OAuth.ClientID, "CLIENT_ID")
	setString(&c.OAuth.ClientSecret, "CLIENT_SECRET")
	setString(&c.OAuth.RedirectURI, "REDIRECT_URI")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Recaptcha.Secret, "RECAPTCHA_SECRET")
	setString(&c.Recaptcha.SiteKey, "RECAPTCHA_SITE_KEY")
	setString(&c.Challenge.Secret, "CHALLENGE_SECRET")
	setString(&c.Support.Invite, "SUPPORT_INVITE")
	setString(&c.Server.PublicURL, "PUBLIC_URL")
	setString(&c.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	if v := strings.TrimSpace(os.Getenv("DENYLIST")); v != "" {
		c.Abuse.Denylist = strings.Split(v, ",")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.HomeURL == "" {
		c.Server.HomeURL = "https://discord.com"
	}
	if c.Server.ResponseWait <= 0 {
		c.Server.ResponseWait = 20 * time.Second
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")
	if c.Discord.GrantTimeout <= 0 {
		c.Discord.GrantTimeout = 10 * time.Second
	}
	if c.Discord.QueueShards <= 0 {
		c.Discord.QueueShards = 4
	}
	if c.Recaptcha.VerifyURL == "" {
		c.Recaptcha.VerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if c.Recaptcha.Timeout <= 0 {
		c.Recaptcha.Timeout = 5 * time.Second
	}
	if c.Challenge.TTL <= 0 {
		c.Challenge.TTL = 15 * time.Minute
	}
	if c.Abuse.Denylist == nil {
		c.Abuse.Denylist = append([]string(nil), defaultDenylist...)
	}
}

// Validate reports every missing required value at once.
func (c *Config) Validate() error {
	var missing []string
	check := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check(c.Discord.Token, "discord.token")
	check(c.Discord.GuildID, "discord.guild_id")
	check(c.Discord.RoleID, "discord.role_id")
	check(c.Database.DSN, "database.url")
	check(c.Recaptcha.Secret, "recaptcha.secret")
	check(c.Challenge.Secret, "challenge.secret")
	check(c.Server.PublicURL, "server.public_url")
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// OAuthEnabled: вариант с OAuth включается только при наличии client_id/secret.
func (c *Config) OAuthEnabled() bool {
	return c.OAuth.ClientID != "" && c.OAuth.ClientSecret != "" && c.OAuth.RedirectURI != ""
}
