package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rolegate/internal/models"
	"rolegate/internal/repositories"
)

var (
	ErrChallengeInvalid  = errors.New("challenge invalid")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeConsumed = errors.New("challenge already used")
)

const challengeIssuer = "rolegate"

type challengeClaims struct {
	Redirect string `json:"redirect,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ChallengeService выдаёт одноразовые ссылки на страницу проверки.
// Ссылка содержит uid и подписанный state (JWT) с jti и сроком действия.
// Авторизации при выдаче нет: её обеспечивают фильтр, CAPTCHA и выдача роли.
type ChallengeService struct {
	secret    []byte
	verifyURL string
	redirect  string
	ttl       time.Duration
	ledger    repositories.ChallengeLedger
	now       func() time.Time
}

func NewChallengeService(secret, publicURL, redirect string, ttl time.Duration, ledger repositories.ChallengeLedger) *ChallengeService {
	return &ChallengeService{
		secret:    []byte(secret),
		verifyURL: strings.TrimRight(publicURL, "/") + "/verify",
		redirect:  redirect,
		ttl:       ttl,
		ledger:    ledger,
		now:       time.Now,
	}
}

// NewChallenge creates and signs a challenge for userID without building the URL.
// email is carried through to the record when the identity provider returned one.
func (s *ChallengeService) NewChallenge(userID string, email *string) (*models.Challenge, string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, "", fmt.Errorf("%w: empty user id", ErrChallengeInvalid)
	}
	now := s.now()
	ch := &models.Challenge{
		ID:             uuid.NewString(),
		UserID:         userID,
		RedirectTarget: s.redirect,
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.ttl),
	}
	claims := challengeClaims{
		Redirect: ch.RedirectTarget,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ch.ID,
			Issuer:    challengeIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(ch.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(ch.ExpiresAt),
		},
	}
	if email != nil && *email != "" {
		e := *email
		ch.Email = &e
		claims.Email = e
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign challenge: %w", err)
	}
	return ch, state, nil
}

// Issue возвращает ссылку вида {public_url}/verify?uid=<id>&state=<jwt>.
func (s *ChallengeService) Issue(userID string) (string, error) {
	return s.IssueWithEmail(userID, nil)
}

func (s *ChallengeService) IssueWithEmail(userID string, email *string) (string, error) {
	_, state, err := s.NewChallenge(userID, email)
	if err != nil {
		return "", err
	}
	challengesIssued.Inc()
	q := url.Values{}
	q.Set("uid", userID)
	q.Set("state", state)
	return s.verifyURL + "?" + q.Encode(), nil
}

func (s *ChallengeService) parse(state string) (*challengeClaims, error) {
	claims := &challengeClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithIssuer(challengeIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrChallengeExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeInvalid, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrChallengeInvalid)
	}
	return claims, nil
}

// Validate проверяет подпись, срок, соответствие uid и то, что ссылка ещё не использована.
func (s *ChallengeService) Validate(ctx context.Context, state, userID string) (*models.Challenge, error) {
	claims, err := s.parse(state)
	if err != nil {
		return nil, err
	}
	if claims.Subject != userID {
		return nil, fmt.Errorf("%w: user mismatch", ErrChallengeInvalid)
	}
	used, err := s.ledger.IsConsumed(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrChallengeConsumed
	}
	ch := &models.Challenge{
		ID:             claims.ID,
		UserID:         claims.Subject,
		RedirectTarget: claims.Redirect,
	}
	if claims.Email != "" {
		e := claims.Email
		ch.Email = &e
	}
	if claims.IssuedAt != nil {
		ch.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		ch.ExpiresAt = claims.ExpiresAt.Time
	}
	return ch, nil
}

// Consume помечает ссылку использованной (Issued -> Consumed).
func (s *ChallengeService) Consume(ctx context.Context, ch *models.Challenge) error {
	ttl := ch.ExpiresAt.Sub(s.now())
	ok, err := s.ledger.Consume(ctx, ch.ID, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrChallengeConsumed
	}
	return nil
}
