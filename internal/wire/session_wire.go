package wire

import (
	"tutoring-scheduler/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireSession(r chi.Router, sessionHandler *adaptor.SessionHandler) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", sessionHandler.CreateSession)
		r.Get("/", sessionHandler.ListSessions)

		// registered before /{id} so it is not taken for an id
		r.Get("/conflict-check", sessionHandler.CheckConflict)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", sessionHandler.GetSession)
			r.Put("/", sessionHandler.UpdateSession)
			r.Put("/reschedule", sessionHandler.RescheduleSession)
			r.Put("/confirm", sessionHandler.ConfirmSession)
			r.Put("/complete", sessionHandler.CompleteSession)
			r.Put("/cancel", sessionHandler.CancelSession)
			r.Get("/cancellation-fee", sessionHandler.GetCancellationFee)
		})
	})

	r.Route("/api/tutors/{tutorId}/sessions", func(r chi.Router) {
		r.Post("/schedule", sessionHandler.ScheduleSession)
		r.Get("/upcoming", sessionHandler.TutorUpcoming)
		r.Get("/completed", sessionHandler.TutorCompleted)
		r.Get("/count/{status}", sessionHandler.TutorCount)
	})

	r.Route("/api/students/{studentId}/sessions", func(r chi.Router) {
		r.Get("/upcoming", sessionHandler.StudentUpcoming)
		r.Get("/completed", sessionHandler.StudentCompleted)
		r.Get("/count/{status}", sessionHandler.StudentCount)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/sessions", func(r chi.Router) {
		r.Delete("/{id}", sessionHandler.DeleteSession)
	})
}
