// internal/models/agent.go
package models

// AgentProfile is the directory record used to resolve an agent id to
// a human-readable display name at write time.
type AgentProfile struct {
	ID          string `json:"id" db:"id"`
	DisplayName string `json:"displayName" db:"display_name"`
	Email       string `json:"email,omitempty" db:"email"`
	IsLicensed  bool   `json:"isLicensed" db:"is_licensed"`
}
