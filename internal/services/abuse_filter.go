package services

import "strings"

// AbuseFilter блокирует адреса по списку префиксов (VPN/прокси-подсети).
type AbuseFilter struct {
	prefixes []string
}

func NewAbuseFilter(prefixes []string) *AbuseFilter {
	clean := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			// пустой префикс заблокировал бы всех
			continue
		}
		clean = append(clean, p)
	}
	return &AbuseFilter{prefixes: clean}
}

func (f *AbuseFilter) IsBlocked(sourceAddress string) bool {
	if f == nil {
		return false
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(sourceAddress, p) {
			return true
		}
	}
	return false
}
