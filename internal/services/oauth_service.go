package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"rolegate/internal/models"
)

const discordAPIBase = "https://discord.com/api"

// OAuthService обменивает code на профиль через identity-эндпоинт Discord.
type OAuthService struct {
	cfg     *oauth2.Config
	apiBase string
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
	Email      string `json:"email"`
}

func NewOAuthService(clientID, clientSecret, redirectURI string) *OAuthService {
	return NewOAuthServiceWithBase(clientID, clientSecret, redirectURI, discordAPIBase)
}

func NewOAuthServiceWithBase(clientID, clientSecret, redirectURI, apiBase string) *OAuthService {
	apiBase = strings.TrimRight(apiBase, "/")
	return &OAuthService{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"identify", "email", "guilds.join"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   apiBase + "/oauth2/authorize",
				TokenURL:  apiBase + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBase: apiBase,
	}
}

func (s *OAuthService) AuthURL(state string) string {
	return s.cfg.AuthCodeURL(state)
}

// Exchange меняет authorization code на профиль пользователя (username, id, avatar, email).
func (s *OAuthService) Exchange(ctx context.Context, code string) (*models.MemberProfile, error) {
	token, err := s.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch user: status=%d body=%s", resp.StatusCode, string(body))
	}
	var u discordUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("parse user: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("parse user: empty id")
	}

	p := &models.MemberProfile{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.GlobalName,
		AvatarURL:   avatarURL(u.ID, u.Avatar),
	}
	if p.DisplayName == "" {
		p.DisplayName = u.Username
	}
	if u.Email != "" {
		e := u.Email
		p.Email = &e
	}
	return p, nil
}

func avatarURL(userID, hash string) string {
	if hash == "" {
		return "https://cdn.discordapp.com/embed/avatars/0.png"
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", userID, hash)
}
