// internal/notify/router.go
package notify

import (
	"fmt"

	"school-notifier/internal/models"
)

// builder maps a notification's related ids and the viewer role to an in-app
// path. Returning "" means "no navigation" and is never an error.
type builder func(n models.Notification, role string) string

var builders = map[string]builder{
	models.TypeReviewRequest:       routeReviewRequest,
	models.TypeSubmissionGraded:    routeSubmissionGraded,
	models.TypeSubmissionReceived:  routeSubmissionReceived,
	models.TypeExamScheduled:       routeExam,
	models.TypeExamUpdated:         routeExam,
	models.TypeExamCancelled:       routeExamCancelled,
	models.TypeEnrollmentConfirmed: routeEnrollment,
	models.TypeClassCreated:        routeClass,
	models.TypeClassUpdated:        routeClass,
	models.TypeClassDeleted:        routeClassDeleted,
	models.TypeTermCreated:         routeTerm,
	models.TypeTermUpdated:         routeTerm,
	models.TypeTermDeleted:         routeTerm,
	models.TypePromotionStarted:    routePromotion,
	models.TypePromotionResult:     routePromotion,
	models.TypeUserRegistered:      routeUser,
	models.TypeUserUpdated:         routeUser,
	models.TypeUserDeleted:         routeUserDeleted,
	models.TypePasswordReset:       routeUserDeleted,
	models.TypeStaffCreated:        routeStaff,
	models.TypeStudentJoined:       routeStudentJoined,
}

// Route resolves the in-app destination for a notification click. A non-empty
// server-supplied link always wins over type inference. Unmapped or
// underspecified notifications resolve to "" and the caller treats that as a
// logged no-op.
func Route(n models.Notification, role string) string {
	if n.Link != "" {
		return n.Link
	}
	build, ok := builders[n.Type]
	if !ok {
		return ""
	}
	return build(n, role)
}

func routeReviewRequest(n models.Notification, role string) string {
	if role != models.RoleTeacher && role != models.RoleAdmin {
		return ""
	}
	examID := n.RelatedID("examId")
	submissionID := n.RelatedID("submissionId")
	switch {
	case examID != "" && submissionID != "":
		return fmt.Sprintf("/exams/%s/submissions/%s/review", examID, submissionID)
	case examID != "":
		return fmt.Sprintf("/exams/%s/submissions", examID)
	default:
		return ""
	}
}

func routeSubmissionGraded(n models.Notification, role string) string {
	submissionID := n.RelatedID("submissionId")
	if submissionID == "" {
		return ""
	}
	switch role {
	case models.RoleStudent:
		return fmt.Sprintf("/results/%s", submissionID)
	case models.RoleTeacher, models.RoleAdmin:
		if examID := n.RelatedID("examId"); examID != "" {
			return fmt.Sprintf("/exams/%s/submissions/%s", examID, submissionID)
		}
		return fmt.Sprintf("/submissions/%s", submissionID)
	default:
		return ""
	}
}

func routeSubmissionReceived(n models.Notification, role string) string {
	if role != models.RoleTeacher && role != models.RoleAdmin {
		return ""
	}
	if examID := n.RelatedID("examId"); examID != "" {
		return fmt.Sprintf("/exams/%s/submissions", examID)
	}
	return ""
}

func routeExam(n models.Notification, role string) string {
	examID := n.RelatedID("examId")
	if examID == "" {
		return ""
	}
	switch role {
	case models.RoleTeacher, models.RoleAdmin:
		return fmt.Sprintf("/teacher/exams/%s", examID)
	default:
		return fmt.Sprintf("/exams/%s", examID)
	}
}

func routeExamCancelled(n models.Notification, role string) string {
	if role == models.RoleTeacher || role == models.RoleAdmin {
		return "/teacher/exams"
	}
	return "/exams"
}

func routeEnrollment(n models.Notification, role string) string {
	if classID := n.RelatedID("classId"); classID != "" {
		return fmt.Sprintf("/classes/%s", classID)
	}
	return "/classes"
}

func routeClass(n models.Notification, role string) string {
	if classID := n.RelatedID("classId"); classID != "" {
		return fmt.Sprintf("/classes/%s", classID)
	}
	return ""
}

func routeClassDeleted(n models.Notification, role string) string {
	return "/classes"
}

func routeTerm(n models.Notification, role string) string {
	if role != models.RoleAdmin {
		return ""
	}
	return "/admin/terms"
}

func routePromotion(n models.Notification, role string) string {
	switch role {
	case models.RoleAdmin:
		return "/admin/promotions"
	case models.RoleStudent:
		return "/results"
	default:
		return ""
	}
}

func routeUser(n models.Notification, role string) string {
	if role != models.RoleAdmin {
		return ""
	}
	if userID := n.RelatedID("userId"); userID != "" {
		return fmt.Sprintf("/admin/users/%s", userID)
	}
	return "/admin/users"
}

func routeUserDeleted(n models.Notification, role string) string {
	if role != models.RoleAdmin {
		return ""
	}
	return "/admin/users"
}

func routeStaff(n models.Notification, role string) string {
	if role != models.RoleAdmin {
		return ""
	}
	return "/admin/staff"
}

func routeStudentJoined(n models.Notification, role string) string {
	if role != models.RoleTeacher && role != models.RoleAdmin {
		return ""
	}
	if classID := n.RelatedID("classId"); classID != "" {
		return fmt.Sprintf("/classes/%s/students", classID)
	}
	return ""
}
