// internal/models/notification.go
package models

import "time"

// Priority is the display urgency of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Viewer roles used by the click router.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Well-known notification types. The set is open ended: unknown types are
// accepted and rendered with generic defaults.
const (
	TypeExamScheduled       = "exam_scheduled"
	TypeExamUpdated         = "exam_updated"
	TypeExamCancelled       = "exam_cancelled"
	TypeSubmissionReceived  = "submission_received"
	TypeSubmissionGraded    = "submission_graded"
	TypeReviewRequest       = "review_request"
	TypeEnrollmentConfirmed = "enrollment_confirmed"
	TypeClassCreated        = "class_created"
	TypeClassUpdated        = "class_updated"
	TypeClassDeleted        = "class_deleted"
	TypeTermCreated         = "term_created"
	TypeTermUpdated         = "term_updated"
	TypeTermDeleted         = "term_deleted"
	TypePromotionStarted    = "promotion_started"
	TypePromotionResult     = "promotion_result"
	TypeUserRegistered      = "user_registered"
	TypeUserUpdated         = "user_updated"
	TypeUserDeleted         = "user_deleted"
	TypePasswordReset       = "password_reset"
	TypeStaffCreated        = "staff_created"
	TypeStudentJoined       = "student_joined"
)

// Notification is the canonical client-side record for one user-facing event.
// Immutable once created except for the Read flag, which only moves
// false -> true.
type Notification struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Icon      string                 `json:"icon"`
	Priority  Priority               `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
	Read      bool                   `json:"read"`
	Link      string                 `json:"link,omitempty"`
	Related   map[string]interface{} `json:"related,omitempty"`
}

// RelatedID returns the named related id as a string, or "" when absent.
func (n Notification) RelatedID(key string) string {
	if n.Related == nil {
		return ""
	}
	if v, ok := n.Related[key].(string); ok {
		return v
	}
	return ""
}

// ServerRecord is the backend's wire shape for a persisted notification.
type ServerRecord struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Icon      string                 `json:"icon,omitempty"`
	Priority  string                 `json:"priority,omitempty"`
	Link      string                 `json:"link,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt string                 `json:"createdAt"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// typeDefaults is the closed per-type table of display defaults. Payload
// values always win; these only fill gaps.
type typeDefault struct {
	Icon     string
	Priority Priority
	Title    string
}

var typeDefaults = map[string]typeDefault{
	TypeExamScheduled:       {Icon: "calendar", Priority: PriorityHigh, Title: "Exam scheduled"},
	TypeExamUpdated:         {Icon: "calendar", Priority: PriorityMedium, Title: "Exam updated"},
	TypeExamCancelled:       {Icon: "calendar-off", Priority: PriorityHigh, Title: "Exam cancelled"},
	TypeSubmissionReceived:  {Icon: "inbox", Priority: PriorityMedium, Title: "Submission received"},
	TypeSubmissionGraded:    {Icon: "check-circle", Priority: PriorityHigh, Title: "Submission graded"},
	TypeReviewRequest:       {Icon: "eye", Priority: PriorityHigh, Title: "Review requested"},
	TypeEnrollmentConfirmed: {Icon: "user-check", Priority: PriorityMedium, Title: "Enrollment confirmed"},
	TypeClassCreated:        {Icon: "book", Priority: PriorityMedium, Title: "Class created"},
	TypeClassUpdated:        {Icon: "book", Priority: PriorityLow, Title: "Class updated"},
	TypeClassDeleted:        {Icon: "book-off", Priority: PriorityMedium, Title: "Class deleted"},
	TypeTermCreated:         {Icon: "layers", Priority: PriorityLow, Title: "Term created"},
	TypeTermUpdated:         {Icon: "layers", Priority: PriorityLow, Title: "Term updated"},
	TypeTermDeleted:         {Icon: "layers", Priority: PriorityMedium, Title: "Term deleted"},
	TypePromotionStarted:    {Icon: "trending-up", Priority: PriorityMedium, Title: "Promotion started"},
	TypePromotionResult:     {Icon: "trending-up", Priority: PriorityHigh, Title: "Promotion result"},
	TypeUserRegistered:      {Icon: "user-plus", Priority: PriorityLow, Title: "User registered"},
	TypeUserUpdated:         {Icon: "user", Priority: PriorityLow, Title: "User updated"},
	TypeUserDeleted:         {Icon: "user-minus", Priority: PriorityMedium, Title: "User deleted"},
	TypePasswordReset:       {Icon: "key", Priority: PriorityMedium, Title: "Password reset"},
	TypeStaffCreated:        {Icon: "briefcase", Priority: PriorityLow, Title: "Staff member added"},
	TypeStudentJoined:       {Icon: "users", Priority: PriorityMedium, Title: "Student joined"},
}

const (
	genericIcon     = "bell"
	genericPriority = PriorityMedium
	genericTitle    = "Notification"
)

// DefaultsFor returns the display defaults for a notification type.
// Unknown types fall back to the generic defaults rather than being rejected.
func DefaultsFor(notificationType string) (icon string, priority Priority, title string) {
	if d, ok := typeDefaults[notificationType]; ok {
		return d.Icon, d.Priority, d.Title
	}
	return genericIcon, genericPriority, genericTitle
}

// KnownType reports whether the type has an entry in the defaults table.
func KnownType(notificationType string) bool {
	_, ok := typeDefaults[notificationType]
	return ok
}

// KnownTypes returns every type in the defaults table. Used by the
// composition root to subscribe to each narrow push event.
func KnownTypes() []string {
	out := make([]string, 0, len(typeDefaults))
	for t := range typeDefaults {
		out = append(out, t)
	}
	return out
}
