package models

import "time"

// VerificationRecord: одна запись на пользователя (user_id уникален).
// Это журнал аудита, а не кэш текущего членства: роль могут снять вручную.
type VerificationRecord struct {
	UserID        string    `json:"user_id"`
	SourceAddress string    `json:"ip"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"display_name"`
	Email         *string   `json:"email,omitempty"` // только если scope email был выдан
	AvatarURL     string    `json:"icon"`
	VerifiedAt    time.Time `json:"verified_at"`
}

// MemberProfile: снимок профиля участника на момент выдачи роли.
type MemberProfile struct {
	UserID      string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Email       *string `json:"email,omitempty"`
	AvatarURL   string  `json:"avatar_url"`
}

func (p *MemberProfile) Record(sourceAddress string, at time.Time) *VerificationRecord {
	return &VerificationRecord{
		UserID:        p.UserID,
		SourceAddress: sourceAddress,
		Username:      p.Username,
		DisplayName:   p.DisplayName,
		Email:         p.Email,
		AvatarURL:     p.AvatarURL,
		VerifiedAt:    at,
	}
}
