package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rolegate/internal/models"
	"rolegate/internal/services"
)

type verificationQueue interface {
	Submit(ctx context.Context, req models.VerificationRequest) (<-chan models.VerificationResult, error)
}

type challengeChecker interface {
	Validate(ctx context.Context, state, userID string) (*models.Challenge, error)
}

type VerifyHandler struct {
	Queue      verificationQueue
	Challenges challengeChecker
	SiteKey    string
	Invite     string
	Redirect   string
	Wait       time.Duration
}

func NewVerifyHandler(q verificationQueue, challenges challengeChecker, siteKey, invite, redirect string, wait time.Duration) *VerifyHandler {
	return &VerifyHandler{Queue: q, Challenges: challenges, SiteKey: siteKey, Invite: invite, Redirect: redirect, Wait: wait}
}

type verifyJSONRequest struct {
	ChallengeResponseToken string `json:"challengeResponseToken"`
}

type verifyJSONResponse struct {
	State      models.VerificationState `json:"state"`
	GrantError models.GrantErrorKind    `json:"grant_error,omitempty"`
	Username   string                   `json:"username,omitempty"`
	Support    string                   `json:"support,omitempty"`
}

// Page godoc
// @Summary      Challenge page
// @Description  Renders the CAPTCHA form for an issued challenge link.
// @Produce      html
// @Param        uid    query  string  true  "User ID"
// @Param        state  query  string  true  "Signed challenge"
// @Success      200
// @Failure      400
// @Router       /verify [get]
func (h *VerifyHandler) Page(c *gin.Context) {
	uid := strings.TrimSpace(c.Query("uid"))
	state := c.Query("state")
	if h.Challenges != nil {
		if _, err := h.Challenges.Validate(c.Request.Context(), state, uid); err != nil {
			log.Printf("[verify][page] invalid challenge uid=%s: %v", uid, err)
			c.HTML(http.StatusBadRequest, "failed.html", gin.H{"Reason": challengeReason(err), "Invite": h.Invite})
			return
		}
	}
	q := url.Values{}
	q.Set("uid", uid)
	q.Set("state", state)
	c.HTML(http.StatusOK, "challenge.html", gin.H{
		"SiteKey": h.SiteKey,
		"Action":  "/verify?" + q.Encode(),
	})
}

// Submit godoc
// @Summary      Submit a challenge response
// @Description  Accepts the CAPTCHA response token and runs the verification pipeline.
// @Accept       x-www-form-urlencoded,json
// @Produce      html,json
// @Param        uid    query  string  true  "User ID"
// @Param        state  query  string  false "Signed challenge"
// @Param        g-recaptcha-response  formData  string  false  "CAPTCHA response token"
// @Success      200  {object}  verifyJSONResponse
// @Success      202  {object}  verifyJSONResponse
// @Failure      400  {object}  verifyJSONResponse
// @Failure      403  {object}  verifyJSONResponse
// @Router       /verify [post]
func (h *VerifyHandler) Submit(c *gin.Context) {
	req := models.VerificationRequest{
		UserID:         strings.TrimSpace(c.Query("uid")),
		SourceAddress:  c.ClientIP(),
		ChallengeState: c.Query("state"),
	}
	wantJSON := strings.HasPrefix(c.ContentType(), "application/json")
	if wantJSON {
		var body verifyJSONRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.ChallengeResponseToken = body.ChallengeResponseToken
	} else {
		req.ChallengeResponseToken = c.PostForm("g-recaptcha-response")
	}

	ch, err := h.Queue.Submit(c.Request.Context(), req)
	if err != nil {
		log.Printf("[verify][submit][err] user_id=%s: %v", req.UserID, err)
		h.render(c, wantJSON, http.StatusServiceUnavailable, "failed.html",
			verifyJSONResponse{State: models.StateGrantError, GrantError: models.GrantFailed, Support: h.Invite},
			gin.H{"Reason": "The verification service is restarting. Please try again in a moment.", "Invite": h.Invite})
		return
	}

	res, done := services.Await(c.Request.Context(), ch, h.Wait)
	// нетерминальное состояние: конвейер ещё не закончил с заявкой
	if !done || !res.State.Terminal() {
		log.Printf("[verify][submit] pending user_id=%s", req.UserID)
		h.render(c, wantJSON, http.StatusAccepted, "pending.html", verifyJSONResponse{State: "pending"}, gin.H{})
		return
	}
	h.renderResult(c, wantJSON, req, res)
}

func (h *VerifyHandler) renderResult(c *gin.Context, wantJSON bool, req models.VerificationRequest, res models.VerificationResult) {
	out := verifyJSONResponse{State: res.State, GrantError: res.GrantError}
	switch res.State {
	case models.StateRecorded:
		data := gin.H{"Redirect": h.Redirect}
		if p := res.Profile; p != nil {
			out.Username = p.Username
			data["Username"] = p.Username
			data["Avatar"] = p.AvatarURL
			if p.Email != nil {
				data["Email"] = *p.Email
			}
		}
		h.render(c, wantJSON, http.StatusOK, "success.html", out, data)

	case models.StateBlocked:
		out.Support = h.Invite
		h.render(c, wantJSON, http.StatusForbidden, "blocked.html", out, gin.H{
			"Reason": "VPN/proxy use was detected.",
			"IP":     req.SourceAddress,
			"Invite": h.Invite,
		})

	case models.StateGrantError:
		out.Support = h.Invite
		status, reason := grantFailure(res.GrantError)
		h.render(c, wantJSON, status, "failed.html", out, gin.H{"Reason": reason, "Invite": h.Invite})

	default:
		out.Support = h.Invite
		reason := "The CAPTCHA could not be verified. Please try again."
		if res.Err != nil && isChallengeErr(res.Err) {
			reason = challengeReason(res.Err)
		}
		h.render(c, wantJSON, http.StatusBadRequest, "failed.html", out, gin.H{"Reason": reason, "Invite": h.Invite})
	}
}

func (h *VerifyHandler) render(c *gin.Context, wantJSON bool, status int, tmpl string, out verifyJSONResponse, data gin.H) {
	if wantJSON {
		c.JSON(status, out)
		return
	}
	c.HTML(status, tmpl, data)
}

func grantFailure(kind models.GrantErrorKind) (int, string) {
	switch kind {
	case models.GrantMemberNotFound:
		return http.StatusNotFound, "You are not a member of the server. Join it and request a new link."
	case models.GrantRoleNotFound:
		return http.StatusServiceUnavailable, "The verified role is not configured on the server. Please contact support."
	}
	return http.StatusBadGateway, "The role could not be assigned. Please try again later or contact support."
}

func isChallengeErr(err error) bool {
	return errors.Is(err, services.ErrChallengeInvalid) ||
		errors.Is(err, services.ErrChallengeExpired) ||
		errors.Is(err, services.ErrChallengeConsumed)
}

func challengeReason(err error) string {
	switch {
	case errors.Is(err, services.ErrChallengeExpired):
		return "This verification link has expired. Press the button in the server again."
	case errors.Is(err, services.ErrChallengeConsumed):
		return "This verification link was already used."
	}
	return "This verification link is invalid."
}
