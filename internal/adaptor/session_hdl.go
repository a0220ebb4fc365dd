package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"tutoring-scheduler/internal/data/entity"
	"tutoring-scheduler/internal/dto/request"
	"tutoring-scheduler/internal/dto/response"
	"tutoring-scheduler/internal/scheduling"
	"tutoring-scheduler/internal/usecase"
	"tutoring-scheduler/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SessionHandler struct {
	service usecase.SessionService
	log     *zap.Logger
}

func NewSessionHandler(service usecase.SessionService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		log:     log.With(zap.String("handler", "session")),
	}
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	session := &entity.Session{
		TutorID:         uuid.MustParse(req.TutorID),
		StudentID:       uuid.MustParse(req.StudentID),
		Subject:         req.Subject,
		ScheduledStart:  req.ScheduledStart,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Notes:           req.Notes,
	}
	if req.HourlyRate != "" {
		session.HourlyRate = decimal.RequireFromString(req.HourlyRate)
	}

	created, err := h.service.Create(r.Context(), session)
	if err != nil {
		h.handleServiceError(w, err, "create session")
		return
	}

	utils.ResponseCreated(w, "Session created successfully", response.SessionToResponse(created))
}

// ScheduleSession handles POST /api/tutors/{tutorId}/sessions/schedule
func (h *SessionHandler) ScheduleSession(w http.ResponseWriter, r *http.Request) {
	tutorID, ok := h.pathUUID(w, r, "tutorId")
	if !ok {
		return
	}

	var req request.ScheduleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	booking := usecase.BookingRequest{
		Date:    req.Date,
		Time:    req.Time,
		Method:  req.Method,
		Note:    req.Note,
		Subject: req.Subject,
	}
	if req.StudentID != "" {
		studentID := uuid.MustParse(req.StudentID)
		booking.StudentID = &studentID
	}

	created, err := h.service.ScheduleFromForm(r.Context(), tutorID, booking)
	if err != nil {
		h.handleServiceError(w, err, "schedule session")
		return
	}

	utils.ResponseCreated(w, "Session scheduled successfully", response.SessionToResponse(created))
}

// ListSessions handles GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter, fieldErrors := parseSessionFilter(query.Get("tutor_id"), query.Get("student_id"), query.Get("status"), query.Get("from"), query.Get("to"))
	if len(fieldErrors) > 0 {
		utils.ResponseBadRequest(w, "Invalid query parameters", fieldErrors)
		return
	}

	page := request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}

	sessions, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, err, "list sessions")
		return
	}

	total := len(sessions)
	start, end := page.Window(total)

	utils.ResponseSuccess(w, "success", response.NewPaginatedResponse(
		response.SessionsToResponse(sessions[start:end]), page.Page, page.Limit(), int64(total)))
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "get session")
		return
	}

	utils.ResponseSuccess(w, "success", response.SessionToResponse(session))
}

// UpdateSession handles PUT /api/sessions/{id}
func (h *SessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req request.UpdateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	session, err := h.service.Update(r.Context(), id, usecase.SessionChanges{
		Subject:         req.Subject,
		ScheduledStart:  req.ScheduledStart,
		DurationMinutes: req.DurationMinutes,
		HourlyRate:      decimal.RequireFromString(req.HourlyRate),
		Location:        req.Location,
		Notes:           req.Notes,
		Version:         req.Version,
	})
	if err != nil {
		h.handleServiceError(w, err, "update session")
		return
	}

	utils.ResponseSuccess(w, "Session updated successfully", response.SessionToResponse(session))
}

// RescheduleSession handles PUT /api/sessions/{id}/reschedule
func (h *SessionHandler) RescheduleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req request.RescheduleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	session, err := h.service.Reschedule(r.Context(), id, req.ScheduledStart, req.DurationMinutes)
	if err != nil {
		h.handleServiceError(w, err, "reschedule session")
		return
	}

	utils.ResponseSuccess(w, "Session rescheduled successfully", response.SessionToResponse(session))
}

// ConfirmSession handles PUT /api/sessions/{id}/confirm
func (h *SessionHandler) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirm session", h.service.Confirm)
}

// CompleteSession handles PUT /api/sessions/{id}/complete
func (h *SessionHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete session", h.service.Complete)
}

// CancelSession handles PUT /api/sessions/{id}/cancel
func (h *SessionHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel session", h.service.Cancel)
}

func (h *SessionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	apply func(ctx context.Context, id uuid.UUID) (*entity.Session, error),
) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := apply(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, operation)
		return
	}

	utils.ResponseSuccess(w, "success", response.SessionToResponse(session))
}

// GetCancellationFee handles GET /api/sessions/{id}/cancellation-fee
func (h *SessionHandler) GetCancellationFee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	quote, err := h.service.CancellationFee(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "get cancellation fee")
		return
	}

	utils.ResponseSuccess(w, "success", response.CancellationFeeResponse{
		SessionID:       quote.Session.ID,
		Status:          string(quote.Session.Status),
		HoursUntilStart: quote.HoursUntil,
		TotalAmount:     quote.Session.TotalAmount.StringFixed(2),
		CancellationFee: quote.Fee.StringFixed(2),
	})
}

// CheckConflict handles GET /api/sessions/conflict-check
func (h *SessionHandler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fieldErrors := make(map[string]string)

	tutorID, err := uuid.Parse(query.Get("tutor_id"))
	if err != nil {
		fieldErrors["tutor_id"] = "Must be a valid UUID"
	}
	start, err := time.Parse(time.RFC3339, query.Get("start"))
	if err != nil {
		fieldErrors["start"] = "Must be an RFC3339 timestamp"
	}
	end, err := time.Parse(time.RFC3339, query.Get("end"))
	if err != nil {
		fieldErrors["end"] = "Must be an RFC3339 timestamp"
	}
	if len(fieldErrors) > 0 {
		utils.ResponseBadRequest(w, "Invalid query parameters", fieldErrors)
		return
	}

	conflict, err := h.service.HasConflict(r.Context(), tutorID, start, end)
	if err != nil {
		h.handleServiceError(w, err, "check conflict")
		return
	}

	utils.ResponseSuccess(w, "success", response.ConflictCheckResponse{
		TutorID:     tutorID,
		Start:       start,
		End:         end,
		HasConflict: conflict,
	})
}

// TutorUpcoming handles GET /api/tutors/{tutorId}/sessions/upcoming
func (h *SessionHandler) TutorUpcoming(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, "tutorId", "get tutor upcoming sessions", h.service.UpcomingForTutor)
}

// TutorCompleted handles GET /api/tutors/{tutorId}/sessions/completed
func (h *SessionHandler) TutorCompleted(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, "tutorId", "get tutor completed sessions", h.service.CompletedForTutor)
}

// StudentUpcoming handles GET /api/students/{studentId}/sessions/upcoming
func (h *SessionHandler) StudentUpcoming(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, "studentId", "get student upcoming sessions", h.service.UpcomingForStudent)
}

// StudentCompleted handles GET /api/students/{studentId}/sessions/completed
func (h *SessionHandler) StudentCompleted(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, "studentId", "get student completed sessions", h.service.CompletedForStudent)
}

func (h *SessionHandler) listFor(
	w http.ResponseWriter,
	r *http.Request,
	param, operation string,
	list func(ctx context.Context, id uuid.UUID) ([]*entity.Session, error),
) {
	id, ok := h.pathUUID(w, r, param)
	if !ok {
		return
	}

	sessions, err := list(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, operation)
		return
	}

	utils.ResponseSuccess(w, "success", response.SessionsToResponse(sessions))
}

// TutorCount handles GET /api/tutors/{tutorId}/sessions/count/{status}
func (h *SessionHandler) TutorCount(w http.ResponseWriter, r *http.Request) {
	h.countFor(w, r, "tutorId", "count tutor sessions", h.service.CountByTutorAndStatus)
}

// StudentCount handles GET /api/students/{studentId}/sessions/count/{status}
func (h *SessionHandler) StudentCount(w http.ResponseWriter, r *http.Request) {
	h.countFor(w, r, "studentId", "count student sessions", h.service.CountByStudentAndStatus)
}

func (h *SessionHandler) countFor(
	w http.ResponseWriter,
	r *http.Request,
	param, operation string,
	count func(ctx context.Context, id uuid.UUID, status entity.SessionStatus) (int64, error),
) {
	id, ok := h.pathUUID(w, r, param)
	if !ok {
		return
	}
	status := entity.SessionStatus(strings.ToUpper(chi.URLParam(r, "status")))

	n, err := count(r.Context(), id, status)
	if err != nil {
		h.handleServiceError(w, err, operation)
		return
	}

	utils.ResponseSuccess(w, "success", response.SessionCountResponse{Status: string(status), Count: n})
}

// DeleteSession handles DELETE /api/admin/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, err, "delete session")
		return
	}

	utils.ResponseSuccess(w, "Session deleted successfully", nil)
}

func (h *SessionHandler) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid "+param+" format", nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseSessionFilter(tutorID, studentID, status, from, to string) (usecase.SessionFilter, map[string]string) {
	var filter usecase.SessionFilter
	fieldErrors := make(map[string]string)

	if tutorID != "" {
		id, err := uuid.Parse(tutorID)
		if err != nil {
			fieldErrors["tutor_id"] = "Must be a valid UUID"
		} else {
			filter.TutorID = &id
		}
	}
	if studentID != "" {
		id, err := uuid.Parse(studentID)
		if err != nil {
			fieldErrors["student_id"] = "Must be a valid UUID"
		} else {
			filter.StudentID = &id
		}
	}
	if status != "" {
		s := entity.SessionStatus(strings.ToUpper(status))
		filter.Status = &s
	}
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			fieldErrors["from"] = "Must be an RFC3339 timestamp"
		} else {
			filter.From = &t
		}
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			fieldErrors["to"] = "Must be an RFC3339 timestamp"
		} else {
			filter.To = &t
		}
	}

	return filter, fieldErrors
}

// handleServiceError maps scheduling error categories onto HTTP responses
func (h *SessionHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	var (
		validationErr *scheduling.ValidationError
		conflictErr   *scheduling.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		h.log.Warn(operation+" validation failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseBadRequest(w, "Validation failed", validationErr.Fields)

	case errors.Is(err, scheduling.ErrValidation):
		h.log.Warn(operation+" validation failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseBadRequest(w, err.Error(), nil)

	case errors.Is(err, scheduling.ErrNotFound), errors.Is(err, scheduling.ErrEmptyCollection):
		h.log.Warn(operation+" failed - not found", zap.Error(err), zap.String("operation", operation))
		utils.ResponseNotFound(w, err.Error())

	case errors.As(err, &conflictErr):
		h.log.Warn(operation+" failed - time slot taken", zap.Error(err), zap.String("operation", operation))
		conflicting := make([]string, 0, len(conflictErr.Conflicts))
		for _, s := range conflictErr.Conflicts {
			conflicting = append(conflicting, s.ID.String())
		}
		utils.ResponseConflict(w, err.Error(), true, map[string][]string{"conflicting_sessions": conflicting})

	case errors.Is(err, scheduling.ErrConflict):
		h.log.Warn(operation+" failed - invalid state", zap.Error(err), zap.String("operation", operation))
		utils.ResponseConflict(w, err.Error(), false, nil)

	case errors.Is(err, scheduling.ErrConcurrency):
		h.log.Warn(operation+" failed - concurrent modification", zap.Error(err), zap.String("operation", operation))
		utils.ResponseConflict(w, err.Error(), true, nil)

	case errors.Is(err, scheduling.ErrIntegrity):
		h.log.Error(operation+" failed - integrity violation", zap.Error(err), zap.String("operation", operation))
		utils.ResponseUnprocessable(w, err.Error())

	default:
		h.log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
