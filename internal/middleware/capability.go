package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/utils"
)

// CourseAccess answers relationship questions against the database. Checks
// run on every request; results are never cached across requests.
type CourseAccess interface {
	IsLecturerAssigned(ctx context.Context, courseID, lecturerID uint) (bool, error)
	IsStudentEnrolled(ctx context.Context, courseID, studentID uint) (bool, error)
}

// RelationshipFunc verifies that the authenticated user stands in the
// required relationship to the target resource.
type RelationshipFunc func(c *fiber.Ctx, userID uint) (bool, error)

// Capability declares what a route requires: a role set, plus an optional
// relationship check applied to non-admin callers.
type Capability struct {
	Roles        []string
	Relationship RelationshipFunc
}

// Require returns a middleware enforcing the capability. Role mismatches and
// failed relationship checks both yield 403; an absent identity yields 401.
func Require(capability Capability) fiber.Handler {
	allowed := make(map[string]struct{}, len(capability.Roles))
	for _, role := range capability.Roles {
		normalized := strings.ToUpper(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		userID := UserIDFromCtx(c)
		if userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		role := UserRoleFromCtx(c)
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}

		// Admins operate on any resource; everyone else must hold the
		// relationship row at request time.
		if capability.Relationship != nil && role != models.RoleAdmin {
			ok, err := capability.Relationship(c, userID)
			if err != nil {
				return utils.SendError(c, fiber.StatusInternalServerError, "authorization check failed")
			}
			if !ok {
				return utils.SendError(c, fiber.StatusForbidden, "not permitted for this resource")
			}
		}

		return c.Next()
	}
}

// LecturerAssigned builds a relationship check that verifies the caller is
// assigned to the course named by the given path parameter.
func LecturerAssigned(access CourseAccess, param string) RelationshipFunc {
	return func(c *fiber.Ctx, userID uint) (bool, error) {
		courseID, err := paramUint(c, param)
		if err != nil {
			return false, nil
		}
		return access.IsLecturerAssigned(c.UserContext(), courseID, userID)
	}
}

// StudentEnrolled builds a relationship check that verifies the caller is
// enrolled in the course named by the given path parameter.
func StudentEnrolled(access CourseAccess, param string) RelationshipFunc {
	return func(c *fiber.Ctx, userID uint) (bool, error) {
		courseID, err := paramUint(c, param)
		if err != nil {
			return false, nil
		}
		return access.IsStudentEnrolled(c.UserContext(), courseID, userID)
	}
}

// CourseMember builds a relationship check that accepts assigned lecturers
// and enrolled students alike, based on the caller's role.
func CourseMember(access CourseAccess, param string) RelationshipFunc {
	return func(c *fiber.Ctx, userID uint) (bool, error) {
		courseID, err := paramUint(c, param)
		if err != nil {
			return false, nil
		}

		switch UserRoleFromCtx(c) {
		case models.RoleLecturer:
			return access.IsLecturerAssigned(c.UserContext(), courseID, userID)
		case models.RoleStudent:
			return access.IsStudentEnrolled(c.UserContext(), courseID, userID)
		default:
			return false, nil
		}
	}
}

// UserIDFromCtx returns the authenticated user's id, or zero when absent.
func UserIDFromCtx(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok && id > 0 {
			return uint(id)
		}
	}
	return 0
}

// UserRoleFromCtx returns the authenticated user's role, normalized uppercase.
func UserRoleFromCtx(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return strings.ToUpper(strings.TrimSpace(role))
		}
	}
	return ""
}

func paramUint(c *fiber.Ctx, key string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}
