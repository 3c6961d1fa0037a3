package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/opencourse/lms-api/internal/config"
	"github.com/opencourse/lms-api/internal/handler"
	"github.com/opencourse/lms-api/internal/middleware"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	CourseHandler       *handler.CourseHandler
	EnrollmentHandler   *handler.EnrollmentHandler
	AssignmentHandler   *handler.AssignmentHandler
	SubmissionHandler   *handler.SubmissionHandler
	ResourceHandler     *handler.ResourceHandler
	MessageHandler      *handler.MessageHandler
	AnnouncementHandler *handler.AnnouncementHandler
	JWTMiddleware       fiber.Handler
	CourseAccess        middleware.CourseAccess
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	adminOnly := middleware.Require(middleware.Capability{
		Roles: []string{models.RoleAdmin},
	})
	anyRole := middleware.Require(middleware.Capability{
		Roles: []string{models.RoleAdmin, models.RoleLecturer, models.RoleStudent},
	})
	studentOnly := middleware.Require(middleware.Capability{
		Roles: []string{models.RoleStudent},
	})
	courseMember := middleware.Require(middleware.Capability{
		Roles:        []string{models.RoleAdmin, models.RoleLecturer, models.RoleStudent},
		Relationship: middleware.CourseMember(deps.CourseAccess, "courseID"),
	})
	courseLecturer := middleware.Require(middleware.Capability{
		Roles:        []string{models.RoleAdmin, models.RoleLecturer},
		Relationship: middleware.LecturerAssigned(deps.CourseAccess, "courseID"),
	})
	enrolledStudent := middleware.Require(middleware.Capability{
		Roles:        []string{models.RoleStudent},
		Relationship: middleware.StudentEnrolled(deps.CourseAccess, "courseID"),
	})

	if deps.AuthHandler != nil {
		auth := api.Group("/auth")
		auth.Post("/register", middleware.RateLimit("auth", 10, time.Minute), deps.AuthHandler.Register)
		auth.Post("/login", middleware.RateLimit("auth", 10, time.Minute), deps.AuthHandler.Login)
		auth.Post("/refresh", deps.AuthHandler.Refresh)
	}

	if deps.UserHandler != nil {
		users := api.Group("/users", jwtMiddleware, adminOnly)
		users.Get("/", deps.UserHandler.List)
		users.Post("/", deps.UserHandler.Create)
		users.Get("/:id", deps.UserHandler.Get)
		users.Put("/:id", deps.UserHandler.Update)
		users.Delete("/:id", deps.UserHandler.Delete)
	}

	if deps.CourseHandler != nil {
		courses := api.Group("/courses", jwtMiddleware)
		courses.Get("/", anyRole, deps.CourseHandler.List)
		courses.Post("/", adminOnly, deps.CourseHandler.Create)
		courses.Get("/:courseID", anyRole, deps.CourseHandler.Get)
		courses.Put("/:courseID", adminOnly, deps.CourseHandler.Update)
		courses.Delete("/:courseID", adminOnly, deps.CourseHandler.Delete)
		courses.Put("/:courseID/lecturers", adminOnly, deps.CourseHandler.ReplaceLecturers)

		if deps.AssignmentHandler != nil {
			assignments := courses.Group("/:courseID/assignments")
			assignments.Get("/", courseMember, deps.AssignmentHandler.List)
			assignments.Post("/", courseLecturer, deps.AssignmentHandler.Create)
			assignments.Get("/:assignmentID", courseMember, deps.AssignmentHandler.Get)
			assignments.Put("/:assignmentID", courseLecturer, deps.AssignmentHandler.Update)
			assignments.Delete("/:assignmentID", courseLecturer, deps.AssignmentHandler.Delete)

			if deps.SubmissionHandler != nil {
				submissions := assignments.Group("/:assignmentID/submissions")
				submissions.Get("/", courseMember, deps.SubmissionHandler.List)
				submissions.Post("/", enrolledStudent, deps.SubmissionHandler.Submit)
				submissions.Get("/:submissionID", courseMember, deps.SubmissionHandler.Get)
				submissions.Post("/:submissionID/grade", courseLecturer, deps.SubmissionHandler.Grade)
			}
		}

		if deps.ResourceHandler != nil {
			resources := courses.Group("/:courseID/resources")
			resources.Get("/", courseMember, deps.ResourceHandler.List)
			resources.Post("/", courseLecturer, deps.ResourceHandler.Create)
			resources.Get("/:resourceID", courseMember, deps.ResourceHandler.Get)
			resources.Put("/:resourceID", courseLecturer, deps.ResourceHandler.Update)
			resources.Delete("/:resourceID", courseLecturer, deps.ResourceHandler.Delete)
		}
	}

	if deps.EnrollmentHandler != nil {
		enrollments := api.Group("/enrollments", jwtMiddleware, studentOnly)
		enrollments.Post("/", deps.EnrollmentHandler.Enroll)
		enrollments.Get("/", deps.EnrollmentHandler.ListMine)
		enrollments.Delete("/:courseID", deps.EnrollmentHandler.Unenroll)
	}

	if deps.MessageHandler != nil {
		messages := api.Group("/messages", jwtMiddleware, anyRole)
		messages.Post("/", middleware.RateLimit("messages", 30, time.Minute), deps.MessageHandler.Send)
		messages.Get("/", deps.MessageHandler.List)
		messages.Get("/conversation/:userID", deps.MessageHandler.Conversation)
		messages.Patch("/:messageID/read", deps.MessageHandler.MarkRead)
		messages.Patch("/:messageID/archive", deps.MessageHandler.Archive)

		stream := api.Group("/messages/ws", jwtMiddleware)
		stream.Use(deps.MessageHandler.UpgradeGuard)
		stream.Get("/", websocket.New(deps.MessageHandler.Stream))
	}

	if deps.AnnouncementHandler != nil {
		announcements := api.Group("/announcements", jwtMiddleware)
		announcements.Get("/", anyRole, deps.AnnouncementHandler.ListActive)
		announcements.Post("/", adminOnly, deps.AnnouncementHandler.Create)
		announcements.Get("/:id", adminOnly, deps.AnnouncementHandler.Get)
		announcements.Put("/:id", adminOnly, deps.AnnouncementHandler.Update)
		announcements.Delete("/:id", adminOnly, deps.AnnouncementHandler.Delete)
	}
}
