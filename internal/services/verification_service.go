package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"rolegate/internal/models"
	"rolegate/internal/repositories"
)

const notifyTimeout = 10 * time.Second

// ChallengeValidator: проверка и погашение одноразовой ссылки.
type ChallengeValidator interface {
	Validate(ctx context.Context, state, userID string) (*models.Challenge, error)
	Consume(ctx context.Context, ch *models.Challenge) error
}

// VerificationService проводит заявку по цепочке
// AbuseFilter -> ChallengeVerifier -> RoleGrantGateway -> VerificationRecordRepository.
// Ни одна ошибка не выходит наружу: результат всегда терминальное состояние.
type VerificationService struct {
	Filter       *AbuseFilter
	Verifier     ChallengeVerifier
	Gateway      RoleGrantGateway
	Records      repositories.VerificationRecordRepository
	Challenges   ChallengeValidator // nil: ссылки многоразовые (старое поведение)
	Notifier     Notifier
	RoleID       string
	GrantTimeout time.Duration

	now func() time.Time
}

func NewVerificationService(
	filter *AbuseFilter,
	verifier ChallengeVerifier,
	gateway RoleGrantGateway,
	records repositories.VerificationRecordRepository,
	challenges ChallengeValidator,
	notifier Notifier,
	roleID string,
	grantTimeout time.Duration,
) *VerificationService {
	return &VerificationService{
		Filter:       filter,
		Verifier:     verifier,
		Gateway:      gateway,
		Records:      records,
		Challenges:   challenges,
		Notifier:     notifier,
		RoleID:       roleID,
		GrantTimeout: grantTimeout,
		now:          time.Now,
	}
}

func (s *VerificationService) Verify(ctx context.Context, req models.VerificationRequest) models.VerificationResult {
	res := s.run(ctx, req)
	verificationsTotal.WithLabelValues(string(res.State)).Inc()
	if res.State == models.StateGrantError {
		grantErrorsTotal.WithLabelValues(string(res.GrantError)).Inc()
	}
	log.Printf("[verify][done] user_id=%s ip=%s state=%s grant_error=%s err=%v",
		req.UserID, req.SourceAddress, res.State, res.GrantError, res.Err)
	if s.Notifier != nil {
		// уведомления не должны задерживать очередь сессии
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		go func() {
			defer cancel()
			s.Notifier.NotifyOutcome(nctx, req, res)
		}()
	}
	return res
}

func (s *VerificationService) run(ctx context.Context, req models.VerificationRequest) models.VerificationResult {
	// Received
	if strings.TrimSpace(req.ChallengeResponseToken) == "" {
		return failed(models.StateChallengeFailed, errors.New("empty challenge response token"))
	}
	if strings.TrimSpace(req.UserID) == "" {
		return failed(models.StateChallengeFailed, errors.New("empty user id"))
	}

	// AddressChecked: до любых внешних вызовов, включая ledger
	if s.Filter.IsBlocked(req.SourceAddress) {
		return failed(models.StateBlocked, fmt.Errorf("address %s is denylisted", req.SourceAddress))
	}

	var challenge *models.Challenge
	if s.Challenges != nil {
		ch, err := s.Challenges.Validate(ctx, req.ChallengeState, req.UserID)
		if err != nil {
			return failed(models.StateChallengeFailed, err)
		}
		challenge = ch
	}

	// ChallengeVerified
	if !s.Verifier.Verify(ctx, req.ChallengeResponseToken, req.SourceAddress) {
		return failed(models.StateChallengeFailed, errors.New("captcha verification failed"))
	}

	// RoleGranted
	profile, err := s.grant(ctx, req.UserID)
	if err != nil {
		return models.VerificationResult{State: models.StateGrantError, GrantError: grantErrorKind(err), Err: err}
	}
	if profile.Email == nil && challenge != nil && challenge.Email != nil {
		profile.Email = challenge.Email
	}
	res := models.VerificationResult{State: models.StateRoleGranted, Profile: profile}

	if challenge != nil {
		if err := s.Challenges.Consume(ctx, challenge); err != nil {
			log.Printf("[verify][challenge][warn] consume failed: user_id=%s challenge=%s err=%v", req.UserID, challenge.ID, err)
		}
	}

	// Recorded: ошибка записи не отменяет уже выданную роль
	rec := profile.Record(req.SourceAddress, s.now().UTC())
	if err := s.Records.Upsert(ctx, rec); err != nil {
		log.Printf("[verify][record][err] user_id=%s: %v", req.UserID, err)
		res.PersistErr = err
	}
	res.State = models.StateRecorded
	return res
}

// grant ограничивает выдачу роли таймаутом; при отмене контекста запись не делается.
// Возврат происходит только после завершения вызова шлюза.
func (s *VerificationService) grant(ctx context.Context, userID string) (*models.MemberProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGrantFailed, err)
	}
	if s.GrantTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.GrantTimeout)
		defer cancel()
	}

	type outcome struct {
		profile *models.MemberProfile
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		p, err := s.Gateway.GrantRole(ctx, userID, s.RoleID)
		done <- outcome{p, err}
	}()

	select {
	case o := <-done:
		if o.err == nil && o.profile == nil {
			return nil, fmt.Errorf("%w: empty profile", ErrGrantFailed)
		}
		return o.profile, o.err
	case <-ctx.Done():
		// шард держим до возврата GrantRole: следующая заявка того же user_id
		// не должна стартовать, пока старая выдача ещё в полёте
		if o := <-done; o.err == nil {
			log.Printf("[verify][grant][warn] late grant after %v: user_id=%s role_id=%s", ctx.Err(), userID, s.RoleID)
		}
		return nil, fmt.Errorf("%w: %v", ErrGrantFailed, ctx.Err())
	}
}

func grantErrorKind(err error) models.GrantErrorKind {
	switch {
	case errors.Is(err, ErrMemberNotFound):
		return models.GrantMemberNotFound
	case errors.Is(err, ErrRoleNotFound):
		return models.GrantRoleNotFound
	}
	return models.GrantFailed
}

func failed(state models.VerificationState, err error) models.VerificationResult {
	return models.VerificationResult{State: state, Err: err}
}
