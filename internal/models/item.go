// internal/models/item.go
package models

import "time"

// VerificationItem is one reviewable field within a session. Items are
// bulk-created with their parent session and never independently
// deleted.
type VerificationItem struct {
	ID            string     `json:"id" db:"id"`
	SessionID     string     `json:"sessionId" db:"session_id"`
	FieldName     string     `json:"fieldName" db:"field_name"`
	OriginalValue string     `json:"originalValue" db:"original_value"`
	VerifiedValue *string    `json:"verifiedValue,omitempty" db:"verified_value"`
	IsVerified    bool       `json:"isVerified" db:"is_verified"`
	IsModified    bool       `json:"isModified" db:"is_modified"`
	Notes         string     `json:"notes,omitempty" db:"notes"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty" db:"verified_at"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

// ComputeModified derives is_modified from a candidate verified value.
func (i *VerificationItem) ComputeModified(verifiedValue string) bool {
	return verifiedValue != i.OriginalValue
}
