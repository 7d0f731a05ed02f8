package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ChallengeVerifier проверяет ответ CAPTCHA во внешнем сервисе.
type ChallengeVerifier interface {
	Verify(ctx context.Context, responseToken, remoteIP string) bool
}

type RecaptchaVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

type siteverifyResp struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func NewRecaptchaVerifier(secret, verifyURL string, timeout time.Duration) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// Verify делает ровно один запрос без повторов. Любая ошибка транспорта,
// не-2xx ответ или битое тело трактуются как неуспех.
func (v *RecaptchaVerifier) Verify(ctx context.Context, responseToken, remoteIP string) bool {
	if strings.TrimSpace(responseToken) == "" {
		return false
	}
	ok, err := v.verify(ctx, responseToken, remoteIP)
	if err != nil {
		log.Printf("[captcha][verify][err] %v", err)
		verifierCalls.WithLabelValues("error").Inc()
		return false
	}
	if ok {
		verifierCalls.WithLabelValues("success").Inc()
	} else {
		verifierCalls.WithLabelValues("rejected").Inc()
	}
	return ok
}

func (v *RecaptchaVerifier) verify(ctx context.Context, responseToken, remoteIP string) (bool, error) {
	form := url.Values{
		"secret":   {v.secret},
		"response": {responseToken},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("siteverify status=%d body=%s", resp.StatusCode, string(body))
	}

	var result siteverifyResp
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("parse response: %w", err)
	}
	if !result.Success {
		log.Printf("[captcha][verify] rejected: codes=%v", result.ErrorCodes)
	}
	return result.Success, nil
}
