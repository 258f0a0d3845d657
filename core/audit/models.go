package audit

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
)

// Action is the closed set of audited actions.
type Action string

const (
	StudentCreated  Action = "STUDENT_CREATED"
	StudentUpdated  Action = "STUDENT_UPDATED"
	StudentDeleted  Action = "STUDENT_DELETED"
	StudentImported Action = "STUDENT_IMPORTED"
	StudentViewed   Action = "STUDENT_VIEWED"

	SchoolCreated     Action = "SCHOOL_CREATED"
	SchoolUpdated     Action = "SCHOOL_UPDATED"
	SchoolDeleted     Action = "SCHOOL_DELETED"
	SchoolActivated   Action = "SCHOOL_ACTIVATED"
	SchoolDeactivated Action = "SCHOOL_DEACTIVATED"
	SchoolViewed      Action = "SCHOOL_VIEWED"

	RegistrationCompleted Action = "REGISTRATION_COMPLETED"

	DraftCreated Action = "DRAFT_CREATED"
	DraftUpdated Action = "DRAFT_UPDATED"
	DraftDeleted Action = "DRAFT_DELETED"

	FeesCreated Action = "FEES_CREATED"
	FeesUpdated Action = "FEES_UPDATED"

	ResourcesCreated Action = "RESOURCES_CREATED"
	ResourcesUpdated Action = "RESOURCES_UPDATED"

	UserLogin  Action = "USER_LOGIN"
	UserLogout Action = "USER_LOGOUT"

	SystemError Action = "SYSTEM_ERROR"
	APIRequest  Action = "API_REQUEST"
)

var Actions = []Action{
	StudentCreated, StudentUpdated, StudentDeleted, StudentImported, StudentViewed,
	SchoolCreated, SchoolUpdated, SchoolDeleted, SchoolActivated, SchoolDeactivated, SchoolViewed,
	RegistrationCompleted,
	DraftCreated, DraftUpdated, DraftDeleted,
	FeesCreated, FeesUpdated,
	ResourcesCreated, ResourcesUpdated,
	UserLogin, UserLogout,
	SystemError, APIRequest,
}

func (a Action) IsValid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Audited resource types
const (
	ResourceSchool      = "School"
	ResourceDraft       = "DraftSchool"
	ResourceResources   = "Resources"
	ResourceFees        = "Fees"
	ResourceStudent     = "Student"
	ResourceStudentFees = "StudentFees"
	ResourceCredentials = "Credentials"
	ResourceSession     = "Session"
)

type Entry struct {
	ID           int64       `json:"id" db:"id" boil:"id"`
	Action       Action      `json:"action" db:"action" boil:"action"`
	UserID       null.String `json:"userId" db:"user_id" boil:"user_id"`
	Username     null.String `json:"username" db:"username" boil:"username"`
	IPAddress    null.String `json:"ipAddress" db:"ip_address" boil:"ip_address"`
	UserAgent    null.String `json:"userAgent" db:"user_agent" boil:"user_agent"`
	Resource     null.String `json:"resource" db:"resource" boil:"resource"`
	ResourceID   null.String `json:"resourceId" db:"resource_id" boil:"resource_id"`
	OldData      null.JSON   `json:"oldData" db:"old_data" boil:"old_data"`
	NewData      null.JSON   `json:"newData" db:"new_data" boil:"new_data"`
	Details      null.String `json:"details" db:"details" boil:"details"`
	Success      bool        `json:"success" db:"success" boil:"success"`
	ErrorMessage null.String `json:"errorMessage" db:"error_message" boil:"error_message"`
	SessionID    null.String `json:"sessionId" db:"session_id" boil:"session_id"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at" boil:"created_at"`
}

type Filter struct {
	Action   string `query:"action" validate:"omitempty,max=64"`
	UserID   string `query:"userId" validate:"omitempty,max=255"`
	Resource string `query:"resource" validate:"omitempty,max=64"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=1000"`
}

const DefaultLimit = 100

// Actor is whoever performs the audited action.
type Actor struct {
	UserID    string
	Username  string
	IPAddress string
	UserAgent string
	SessionID string
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
