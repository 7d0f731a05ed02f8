package authz

// Scopes, которые выдаются админ-токенам.
const (
	ScopeRecordsRead = "records:read"
	ScopeAdmin       = "admin"
)

// Allows reports whether the granted scopes satisfy required; admin satisfies everything.
func Allows(granted []string, required string) bool {
	for _, s := range granted {
		if s == required || s == ScopeAdmin {
			return true
		}
	}
	return false
}
