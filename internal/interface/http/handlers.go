package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kary-hub/kary-sync-engine/internal/application/entitystore"
	"github.com/kary-hub/kary-sync-engine/internal/application/lifecycle"
	"github.com/kary-hub/kary-sync-engine/internal/domain/activity"
	"github.com/kary-hub/kary-sync-engine/internal/domain/casefile"
	"github.com/kary-hub/kary-sync-engine/internal/domain/link"
	"github.com/kary-hub/kary-sync-engine/internal/domain/notification"
	"github.com/kary-hub/kary-sync-engine/internal/domain/person"
	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
	"github.com/kary-hub/kary-sync-engine/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain error kinds onto HTTP status codes. Anything
// unrecognized is reported as a 500 without leaking internals.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrAlreadyExists),
		errors.Is(err, shared.ErrAlreadyResolved),
		errors.Is(err, shared.ErrStateTransition),
		errors.Is(err, shared.ErrOptimisticLock):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidEntity),
		errors.Is(err, shared.ErrEmptyValue),
		errors.Is(err, shared.ErrValueOutOfRange),
		errors.Is(err, shared.ErrInvalidState),
		errors.Is(err, shared.ErrInvalidFormat),
		errors.Is(err, shared.ErrExpired):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, shared.ErrServiceUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	default:
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", getRequestID(r.Context()),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime_s":  int(s.Uptime().Seconds()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "kary-sync-engine",
		"api":     "/api/v1",
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PEOPLE
// ══════════════════════════════════════════════════════════════════════════════

type createPersonRequest struct {
	Role              string `json:"role"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	TeacherID         string `json:"teacherId"`
	PsychopedagogueID string `json:"psychopedagogueId"`
	ParentID          string `json:"parentId"`
	Grade             string `json:"grade"`
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.deps.Entities.CreatePerson(r.Context(), entitystore.CreatePersonInput{
		Role:              person.Role(req.Role),
		Name:              req.Name,
		Email:             req.Email,
		TeacherID:         req.TeacherID,
		PsychopedagogueID: req.PsychopedagogueID,
		ParentID:          req.ParentID,
		Grade:             req.Grade,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	filter := person.Filter{
		Role:              person.Role(getQueryParam(r, "role", "")),
		TeacherID:         getQueryParam(r, "teacherId", ""),
		PsychopedagogueID: getQueryParam(r, "psychopedagogueId", ""),
	}

	persons, err := s.deps.Entities.ListPersons(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, persons)
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Entities.GetPerson(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updatePersonRequest struct {
	Name              *string `json:"name"`
	Email             *string `json:"email"`
	TeacherID         *string `json:"teacherId"`
	PsychopedagogueID *string `json:"psychopedagogueId"`
	ParentID          *string `json:"parentId"`
	Grade             *string `json:"grade"`
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	var req updatePersonRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.deps.Entities.UpdatePerson(r.Context(), r.PathValue("id"), entitystore.PersonPatch{
		Name:              req.Name,
		Email:             req.Email,
		TeacherID:         req.TeacherID,
		PsychopedagogueID: req.PsychopedagogueID,
		ParentID:          req.ParentID,
		Grade:             req.Grade,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// ══════════════════════════════════════════════════════════════════════════════
// CASES & SUPPORT PLANS
// ══════════════════════════════════════════════════════════════════════════════

type createCaseRequest struct {
	StudentID         string `json:"studentId"`
	PsychopedagogueID string `json:"psychopedagogueId"`
	Title             string `json:"title"`
	Description       string `json:"description"`
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := s.deps.Entities.CreateCase(r.Context(), entitystore.CreateCaseInput{
		StudentID:         req.StudentID,
		PsychopedagogueID: req.PsychopedagogueID,
		Title:             req.Title,
		Description:       req.Description,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	filter := casefile.CaseFilter{
		StudentID:         getQueryParam(r, "studentId", ""),
		PsychopedagogueID: getQueryParam(r, "psychopedagogueId", ""),
		Status:            casefile.CaseStatus(getQueryParam(r, "status", "")),
	}

	cases, err := s.deps.Entities.ListCases(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cases)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateCaseStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := s.deps.Entities.UpdateCaseStatus(r.Context(), r.PathValue("id"), casefile.CaseStatus(req.Status))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

type createPlanRequest struct {
	StudentID  string   `json:"studentId"`
	CaseID     string   `json:"caseId"`
	AuthorID   string   `json:"authorId"`
	Title      string   `json:"title"`
	Objectives []string `json:"objectives"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.deps.Entities.CreatePlan(r.Context(), entitystore.CreatePlanInput{
		StudentID:  req.StudentID,
		CaseID:     req.CaseID,
		AuthorID:   req.AuthorID,
		Title:      req.Title,
		Objectives: req.Objectives,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	filter := casefile.PlanFilter{
		StudentID: getQueryParam(r, "studentId", ""),
		CaseID:    getQueryParam(r, "caseId", ""),
		AuthorID:  getQueryParam(r, "authorId", ""),
		Status:    casefile.PlanStatus(getQueryParam(r, "status", "")),
	}

	plans, err := s.deps.Entities.ListPlans(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleUpdatePlanStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.deps.Entities.UpdatePlanStatus(r.Context(), r.PathValue("id"), casefile.PlanStatus(req.Status))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

type createActivityRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Subject     string     `json:"subject"`
	Grade       string     `json:"grade"`
	Category    string     `json:"category"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedBy   string     `json:"createdBy"`
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var req createActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := s.deps.Activities.CreateActivity(r.Context(), lifecycle.CreateActivityInput{
		Title:       req.Title,
		Description: req.Description,
		Subject:     req.Subject,
		Grade:       req.Grade,
		Category:    req.Category,
		DueDate:     req.DueDate,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	filter := activity.TemplateFilter{
		CreatedBy: getQueryParam(r, "createdBy", ""),
		Subject:   getQueryParam(r, "subject", ""),
		Grade:     getQueryParam(r, "grade", ""),
		Status:    activity.Status(getQueryParam(r, "status", "")),
	}

	activities, err := s.deps.Activities.ListActivities(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, activities)
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Activities.GetActivity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	requestedBy := getQueryParam(r, "requestedBy", "")
	if requestedBy == "" {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "requestedBy query parameter is required")
		return
	}

	if err := s.deps.Activities.Delete(r.Context(), r.PathValue("id"), requestedBy); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type duplicateActivityRequest struct {
	RequestedBy string `json:"requestedBy"`
}

func (s *Server) handleDuplicateActivity(w http.ResponseWriter, r *http.Request) {
	var req duplicateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := s.deps.Activities.Duplicate(r.Context(), r.PathValue("id"), req.RequestedBy)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

type assignActivityRequest struct {
	StudentIDs []string `json:"studentIds"`
}

// handleAssignActivity creates one assignment per student and then fans the
// corresponding notification bundle out: one per assigned student plus one
// summary for the creating teacher.
func (s *Server) handleAssignActivity(w http.ResponseWriter, r *http.Request) {
	var req assignActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	activityID := r.PathValue("id")

	tpl, err := s.deps.Activities.GetActivity(r.Context(), activityID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	assignments, err := s.deps.Activities.AssignToStudents(r.Context(), activityID, req.StudentIDs)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	notifications, err := s.deps.Notifications.CreateActivityNotifications(r.Context(), tpl, assignments)
	if err != nil {
		// Assignments are already persisted at this point, so the request
		// still succeeds; the notification failure is only logged.
		s.logger.Error("assignment notifications failed",
			"activity_id", activityID,
			"error", err,
			"request_id", getRequestID(r.Context()),
		)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"assignments":   assignments,
		"notifications": len(notifications),
	})
}

type updateProgressRequest struct {
	StudentID string `json:"studentId"`
	Progress  int    `json:"progress"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req updateProgressRequest
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := s.deps.Activities.UpdateProgress(r.Context(), r.PathValue("id"), req.StudentID, req.Progress)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	studentName := req.StudentID
	if p, perr := s.deps.Entities.GetPerson(r.Context(), req.StudentID); perr == nil {
		studentName = p.Name
	}
	if _, nerr := s.deps.Notifications.CreateProgressNotification(r.Context(), a, studentName); nerr != nil {
		s.logger.Error("progress notification failed",
			"assignment_id", a.ID,
			"error", nerr,
			"request_id", getRequestID(r.Context()),
		)
	}

	writeJSON(w, http.StatusOK, a)
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	filter := activity.AssignmentFilter{
		ParentActivityID: getQueryParam(r, "activityId", ""),
		AssignedTo:       getQueryParam(r, "assignedTo", ""),
		CreatedBy:        getQueryParam(r, "createdBy", ""),
		Status:           activity.Status(getQueryParam(r, "status", "")),
		Category:         getQueryParam(r, "category", ""),
	}

	assignments, err := s.deps.Activities.ListAssignments(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, assignments)
}

type submitAssignmentRequest struct {
	StudentID string `json:"studentId"`
	Content   string `json:"content"`
}

func (s *Server) handleSubmitAssignment(w http.ResponseWriter, r *http.Request) {
	var req submitAssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := s.deps.Activities.Submit(r.Context(), r.PathValue("id"), req.StudentID, req.Content)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

type addFeedbackRequest struct {
	TeacherID string `json:"teacherId"`
	Content   string `json:"content"`
}

func (s *Server) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	var req addFeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	a, err := s.deps.Activities.AddFeedback(r.Context(), r.PathValue("id"), req.TeacherID, req.Content)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// recipientFromQuery builds a recipient from role + userId, or role +
// studentId for feeds addressed by student scope.
func recipientFromQuery(r *http.Request) (notification.Recipient, bool) {
	role := notification.RecipientRole(getQueryParam(r, "role", ""))
	userID := getQueryParam(r, "userId", "")
	studentID := getQueryParam(r, "studentId", "")

	switch {
	case role != "" && userID != "":
		return notification.DirectRecipient(role, userID), true
	case role != "" && studentID != "":
		return notification.ScopedRecipient(role, studentID), true
	default:
		return notification.Recipient{}, false
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	recipient, ok := recipientFromQuery(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "role plus userId or studentId query parameters are required")
		return
	}

	notifications, err := s.deps.Notifications.List(r.Context(), recipient, getQueryParamBool(r, "unread"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleNotificationStats(w http.ResponseWriter, r *http.Request) {
	recipient, ok := recipientFromQuery(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "role plus userId or studentId query parameters are required")
		return
	}

	kind := notification.Kind(getQueryParam(r, "type", ""))
	stats, err := s.deps.Notifications.Stats(r.Context(), recipient, kind)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Notifications.MarkRead(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	recipient, ok := recipientFromQuery(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "validation_error", "role plus userId or studentId query parameters are required")
		return
	}

	kind := notification.Kind(getQueryParam(r, "type", ""))
	count, err := s.deps.Notifications.MarkAllRead(r.Context(), recipient, kind)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"marked": count})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Notifications.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// LINK WORKFLOW
// ══════════════════════════════════════════════════════════════════════════════

type createLinkRequestRequest struct {
	ParentID     string `json:"parentId"`
	StudentID    string `json:"studentId"`
	Relationship string `json:"relationship"`
}

func (s *Server) handleCreateLinkRequest(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lr, err := s.deps.Links.CreateLinkRequest(r.Context(), req.ParentID, req.StudentID, req.Relationship)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, lr)
}

func (s *Server) handleListLinkRequests(w http.ResponseWriter, r *http.Request) {
	filter := link.RequestFilter{
		ParentID:  getQueryParam(r, "parentId", ""),
		StudentID: getQueryParam(r, "studentId", ""),
		Status:    link.RequestStatus(getQueryParam(r, "status", "")),
	}

	requests, err := s.deps.Links.ListRequests(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, requests)
}

type approveLinkRequestRequest struct {
	ApprovedBy string `json:"approvedBy"`
}

func (s *Server) handleApproveLinkRequest(w http.ResponseWriter, r *http.Request) {
	var req approveLinkRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	activeLink, err := s.deps.Links.Approve(r.Context(), r.PathValue("id"), req.ApprovedBy)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, activeLink)
}

type rejectLinkRequestRequest struct {
	Reason     string `json:"reason"`
	RejectedBy string `json:"rejectedBy"`
}

func (s *Server) handleRejectLinkRequest(w http.ResponseWriter, r *http.Request) {
	var req rejectLinkRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lr, err := s.deps.Links.Reject(r.Context(), r.PathValue("id"), req.Reason, req.RejectedBy)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lr)
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	filter := link.LinkFilter{
		ParentID:  getQueryParam(r, "parentId", ""),
		StudentID: getQueryParam(r, "studentId", ""),
	}

	links, err := s.deps.Links.ListLinks(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, links)
}

// ══════════════════════════════════════════════════════════════════════════════
// PARENT VIEWS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetParentView(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Views.GetParentView(r.Context(), r.PathValue("parentId"), r.PathValue("studentId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSyncParentView(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Views.SyncParentWithStudent(r.Context(), r.PathValue("parentId"), r.PathValue("studentId"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULED JOBS ADMIN
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Jobs.ListJobs())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Jobs.GetJobInfo(r.PathValue("name"))
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Jobs.RunNow(r.Context(), r.PathValue("name"))
	if errors.Is(err, scheduler.ErrJobNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	// A failed run still yields the recorded result; the payload carries
	// the job's error text.
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEnableJob(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Jobs.EnableJob(r.PathValue("name")); err != nil {
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

func (s *Server) handleDisableJob(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Jobs.DisableJob(r.PathValue("name")); err != nil {
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	limit := getQueryParamInt(r, "limit", 50)
	writeJSON(w, http.StatusOK, s.deps.Jobs.GetHistory(limit))
}

func (s *Server) handleJobMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := s.deps.Jobs.GetMetrics()
	if metrics == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "metrics are disabled")
		return
	}
	writeJSON(w, http.StatusOK, metrics.Snapshot())
}
