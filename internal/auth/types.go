package auth

import "time"

// Status is the lifecycle state shared by subjects, permissions, profiles and grants.
type Status string

const (
	StatusInitialized Status = "ini"
	StatusValidated   Status = "val"
	StatusDeleted     Status = "del"
	StatusArchived    Status = "arc"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInitialized, StatusValidated, StatusDeleted, StatusArchived:
		return true
	}
	return false
}

// Active reports whether rows in this state still confer permissions when filtering is on.
func (s Status) Active() bool {
	return s == StatusInitialized || s == StatusValidated
}

// User is the local subject linked to an identity-provider account by UUID.
type User struct {
	ID        int64
	UUID      string
	Firstname string
	Lastname  string
	Email     string
	// CreatorID references the subject who provisioned this one; nil for self sign-up.
	CreatorID *int64
	IsAdmin   bool
	Status    Status
	Created   time.Time
	Modified  time.Time
}

// Permission is a named capability.
type Permission struct {
	ID          int64
	Code        string
	LabelEN     string
	LabelFR     string
	Description string
	Admin       bool
	CreatorID   *int64
	Status      Status
	Created     time.Time
}

// Profile bundles permissions.
type Profile struct {
	ID          int64
	Code        string
	Description string
	LabelEN     string
	LabelFR     string
	CreatorID   *int64
	Status      Status
	Created     time.Time
}

// ProfilePermission grants a permission to a profile.
type ProfilePermission struct {
	ProfileID    int64
	PermissionID int64
	GrantedBy    *int64
	Status       Status
	Created      time.Time
}

// UserProfile assigns a profile to a subject.
type UserProfile struct {
	UserID    int64
	ProfileID int64
	GrantedBy *int64
	Status    Status
	Created   time.Time
}

// ExpiredToken is a revoked credential.
type ExpiredToken struct {
	ID        int64
	Token     string
	CreatedAt time.Time
	UpdatedAt *time.Time
}
