package services

import (
	"context"
	"strings"

	"rolegate/internal/models"
	"rolegate/internal/repositories"
)

// RecordService: чтение журнала верификаций для /user и админ-API.
type RecordService struct {
	repo repositories.VerificationRecordRepository
}

func NewRecordService(repo repositories.VerificationRecordRepository) *RecordService {
	return &RecordService{repo: repo}
}

// Lookup returns nil, nil when the user has never been verified.
func (s *RecordService) Lookup(ctx context.Context, userID string) (*models.VerificationRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	return s.repo.GetByUserID(ctx, userID)
}
