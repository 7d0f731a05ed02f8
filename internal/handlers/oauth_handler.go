package handlers

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rolegate/internal/models"
	"rolegate/internal/utils"
)

const oauthStateCookie = "rolegate_oauth_state"

type profileExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*models.MemberProfile, error)
}

type challengeIssuer interface {
	IssueWithEmail(userID string, email *string) (string, error)
}

type addressFilter interface {
	IsBlocked(sourceAddress string) bool
}

// OAuthHandler: вход через Discord OAuth, профиль берётся из identity-эндпоинта,
// затем пользователь получает ссылку на CAPTCHA для своего id.
type OAuthHandler struct {
	OAuth      profileExchanger
	Challenges challengeIssuer
	Filter     addressFilter
	Invite     string
	Secure     bool
}

func NewOAuthHandler(oauth profileExchanger, challenges challengeIssuer, filter addressFilter, invite string, secure bool) *OAuthHandler {
	return &OAuthHandler{OAuth: oauth, Challenges: challenges, Filter: filter, Invite: invite, Secure: secure}
}

// Start godoc
// @Summary  Redirect to the Discord authorize page
// @Success  302
// @Router   /oauth/start [get]
func (h *OAuthHandler) Start(c *gin.Context) {
	state, err := utils.NewStateToken()
	if err != nil {
		log.Printf("[oauth][start] rand failed: %v", err)
		c.HTML(http.StatusInternalServerError, "failed.html", gin.H{"Reason": "Please try again.", "Invite": h.Invite})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/oauth", "", h.Secure, true)
	c.Redirect(http.StatusFound, h.OAuth.AuthURL(state))
}

// Callback godoc
// @Summary  Identity-provider callback
// @Param    code   query  string  false  "Authorization code"
// @Param    state  query  string  false  "OAuth state"
// @Success  302
// @Failure  400
// @Failure  403
// @Router   /oauth [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	ip := c.ClientIP()
	if h.Filter != nil && h.Filter.IsBlocked(ip) {
		log.Printf("[oauth][callback] blocked ip=%s", ip)
		c.HTML(http.StatusForbidden, "blocked.html", gin.H{"Reason": "VPN/proxy use was detected.", "IP": ip, "Invite": h.Invite})
		return
	}

	code := c.Query("code")
	if code == "" {
		h.Start(c)
		return
	}

	expected, err := c.Cookie(oauthStateCookie)
	if err != nil || expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(c.Query("state"))) != 1 {
		log.Printf("[oauth][callback] state mismatch ip=%s", ip)
		c.HTML(http.StatusBadRequest, "failed.html", gin.H{"Reason": "The login session expired. Please try again.", "Invite": h.Invite})
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/oauth", "", h.Secure, true)

	profile, err := h.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		log.Printf("[oauth][callback][err] exchange: %v", err)
		c.HTML(http.StatusBadGateway, "failed.html", gin.H{"Reason": "Discord login failed. Please try again.", "Invite": h.Invite})
		return
	}

	link, err := h.Challenges.IssueWithEmail(profile.UserID, profile.Email)
	if err != nil {
		log.Printf("[oauth][callback][err] issue: %v", err)
		c.HTML(http.StatusInternalServerError, "failed.html", gin.H{"Reason": "Please try again.", "Invite": h.Invite})
		return
	}
	c.Redirect(http.StatusFound, link)
}
