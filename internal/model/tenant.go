package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tenant. Deleted is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// ParseStatus converts a raw string into a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, StatusSuspended, StatusDeleted:
		return Status(s), true
	}
	return "", false
}

// CanTransitionTo reports whether the transition s -> next is allowed.
// Active and suspended may move between each other and both may be deleted;
// nothing leaves deleted.
func (s Status) CanTransitionTo(next Status) bool {
	if s == StatusDeleted {
		return false
	}
	switch next {
	case StatusActive, StatusSuspended, StatusDeleted:
		return next != s
	}
	return false
}

// Tenant represents one row of the tenants table in the control plane.
type Tenant struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	DisplayName    string     `json:"display_name"`
	ContactEmail   string     `json:"contact_email,omitempty"` // transient, stored encrypted
	EncryptedEmail []byte     `json:"-"`
	EmailIV        []byte     `json:"-"`
	ContactPhone   string     `json:"contact_phone,omitempty"`
	Status         Status     `json:"status"`
	Generation     string     `json:"naming_generation"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the tenant has been soft-deleted.
func (t *Tenant) Deleted() bool {
	return t.Status == StatusDeleted
}
