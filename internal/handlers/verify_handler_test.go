package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"rolegate/internal/models"
	"rolegate/internal/services"
	"rolegate/internal/web"
)

type fakeQueue struct {
	res     *models.VerificationResult
	err     error
	lastReq models.VerificationRequest
}

func (q *fakeQueue) Submit(ctx context.Context, req models.VerificationRequest) (<-chan models.VerificationResult, error) {
	q.lastReq = req
	if q.err != nil {
		return nil, q.err
	}
	ch := make(chan models.VerificationResult, 1)
	if q.res != nil {
		ch <- *q.res
	}
	return ch, nil
}

type fakeChecker struct{ err error }

func (f fakeChecker) Validate(ctx context.Context, state, userID string) (*models.Challenge, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Challenge{ID: "c1", UserID: userID}, nil
}

func newVerifyRouter(h *VerifyHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.SetHTMLTemplate(web.Templates())
	r.GET("/verify", h.Page)
	r.POST("/verify", h.Submit)
	return r
}

func postForm(r *gin.Engine, target, token, remoteAddr string) *httptest.ResponseRecorder {
	form := url.Values{"g-recaptcha-response": {token}}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitBuildsRequestFromForm(t *testing.T) {
	q := &fakeQueue{res: &models.VerificationResult{State: models.StateRecorded, Profile: &models.MemberProfile{Username: "neo", AvatarURL: "https://cdn/a.png"}}}
	r := newVerifyRouter(NewVerifyHandler(q, fakeChecker{}, "site", "https://discord.gg/help", "https://discord.com", time.Second))

	w := postForm(r, "/verify?uid=42&state=st", "abc", "10.0.0.1:5555")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "neo") {
		t.Fatalf("expected username in page: %s", w.Body.String())
	}
	want := models.VerificationRequest{UserID: "42", SourceAddress: "10.0.0.1", ChallengeResponseToken: "abc", ChallengeState: "st"}
	if q.lastReq != want {
		t.Fatalf("unexpected request %+v", q.lastReq)
	}
}

func TestSubmitRendersOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		res    models.VerificationResult
		status int
		body   string
	}{
		{"blocked", models.VerificationResult{State: models.StateBlocked}, http.StatusForbidden, "discord.gg/help"},
		{"captcha failed", models.VerificationResult{State: models.StateChallengeFailed}, http.StatusBadRequest, "could not be verified"},
		{"link used", models.VerificationResult{State: models.StateChallengeFailed, Err: services.ErrChallengeConsumed}, http.StatusBadRequest, "already used"},
		{"member missing", models.VerificationResult{State: models.StateGrantError, GrantError: models.GrantMemberNotFound}, http.StatusNotFound, "not a member"},
		{"role missing", models.VerificationResult{State: models.StateGrantError, GrantError: models.GrantRoleNotFound}, http.StatusServiceUnavailable, "not configured"},
		{"grant failed", models.VerificationResult{State: models.StateGrantError, GrantError: models.GrantFailed}, http.StatusBadGateway, "could not be assigned"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.res
			r := newVerifyRouter(NewVerifyHandler(&fakeQueue{res: &res}, nil, "site", "https://discord.gg/help", "", time.Second))
			w := postForm(r, "/verify?uid=42", "abc", "10.0.0.1:1")
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			if !strings.Contains(w.Body.String(), tc.body) {
				t.Fatalf("expected %q in body: %s", tc.body, w.Body.String())
			}
		})
	}
}

func TestSubmitJSON(t *testing.T) {
	q := &fakeQueue{res: &models.VerificationResult{State: models.StateGrantError, GrantError: models.GrantMemberNotFound}}
	r := newVerifyRouter(NewVerifyHandler(q, nil, "", "https://discord.gg/help", "", time.Second))

	req := httptest.NewRequest(http.MethodPost, "/verify?uid=42", strings.NewReader(`{"challengeResponseToken":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"grant_error":"member_not_found"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if q.lastReq.ChallengeResponseToken != "abc" {
		t.Fatalf("token not bound: %+v", q.lastReq)
	}
}

func TestSubmitPendingWhenWaitExceeded(t *testing.T) {
	r := newVerifyRouter(NewVerifyHandler(&fakeQueue{}, nil, "", "", "", 10*time.Millisecond))
	w := postForm(r, "/verify?uid=42", "abc", "10.0.0.1:1")
	if w.Code != http.StatusAccepted || !strings.Contains(w.Body.String(), "in progress") {
		t.Fatalf("expected pending page, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitPendingOnNonTerminalState(t *testing.T) {
	q := &fakeQueue{res: &models.VerificationResult{State: models.StateRoleGranted}}
	r := newVerifyRouter(NewVerifyHandler(q, nil, "", "", "", time.Second))
	w := postForm(r, "/verify?uid=42", "abc", "10.0.0.1:1")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for unfinished state, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitQueueClosed(t *testing.T) {
	r := newVerifyRouter(NewVerifyHandler(&fakeQueue{err: services.ErrSessionClosed}, nil, "", "", "", time.Second))
	w := postForm(r, "/verify?uid=42", "abc", "10.0.0.1:1")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestPageRendersChallengeForm(t *testing.T) {
	r := newVerifyRouter(NewVerifyHandler(&fakeQueue{}, fakeChecker{}, "site-key-1", "", "", time.Second))
	req := httptest.NewRequest(http.MethodGet, "/verify?uid=42&state=st", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "site-key-1") || !strings.Contains(body, "uid=42") {
		t.Fatalf("unexpected page %s", body)
	}
}

func TestPageRejectsExpiredLink(t *testing.T) {
	r := newVerifyRouter(NewVerifyHandler(&fakeQueue{}, fakeChecker{err: services.ErrChallengeExpired}, "", "", "", time.Second))
	req := httptest.NewRequest(http.MethodGet, "/verify?uid=42&state=old", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "expired") {
		t.Fatalf("expected expired page, got %d: %s", w.Code, w.Body.String())
	}
}

func TestChallengeReasonDefault(t *testing.T) {
	if got := challengeReason(errors.New("x")); !strings.Contains(got, "invalid") {
		t.Fatalf("unexpected reason %q", got)
	}
}
