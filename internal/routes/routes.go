package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/peyvandapp/peyvand-backend/internal/handlers"
	"github.com/peyvandapp/peyvand-backend/internal/middleware"
)

func SetupRoutes(r *chi.Mux, devMode bool) {
	// Report intake (called by the app on behalf of the reporter)
	r.Post("/api/reports", handlers.SubmitReport)
	r.Get("/api/violation-types", handlers.ListViolationTypes)

	// Admin auth routes
	r.Post("/api/admin/signin", handlers.AdminSignin)
	if devMode {
		// Live admin accounts are provisioned directly in the database
		r.Post("/api/admin/signup", handlers.AdminSignup)
	}

	// Admin surface, behind session auth
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminSession)

		r.Post("/api/admin/signout", handlers.AdminSignout)

		// Reports
		r.Get("/api/admin/reports", handlers.ListReports)
		r.Get("/api/admin/reports/detail", handlers.GetReportDetail)
		r.Post("/api/admin/reports/escalate", handlers.EscalateReport)
		r.Get("/api/admin/reports/stats", handlers.GetReportStats)
		r.Post("/api/admin/reports/evidence", handlers.UploadEvidence)
		r.Get("/api/admin/users/violations", handlers.GetViolationHistory)
		r.Post("/api/admin/sweep", handlers.RunSweep)

		// Moderation rules
		r.Post("/api/admin/rules", handlers.CreateRule)
		r.Get("/api/admin/rules", handlers.ListRules)
		r.Get("/api/admin/rules/detail", handlers.GetRule)
		r.Put("/api/admin/rules", handlers.UpdateRule)
		r.Put("/api/admin/rules/warning", handlers.ToggleRuleWarning)
		r.Delete("/api/admin/rules", handlers.DeleteRule)
	})

	// WebSocket endpoint for the realtime admin notification feed
	// (authenticates inside the handler so browser clients can pass
	// the token as a query parameter)
	r.Get("/ws/admin/notifications", handlers.AdminNotificationFeed)
}
