// Package api exposes the HTTP command surface for study management.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/CSPCLAB/study-bot/internal/auth"
	"github.com/CSPCLAB/study-bot/internal/domain"
	"github.com/CSPCLAB/study-bot/internal/wizard"
)

// Handler coordinates HTTP requests with the domain service and wizard store.
type Handler struct {
	service *domain.Service
	wizard  *wizard.Store
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, wizardStore *wizard.Store) *Handler {
	return &Handler{service: service, wizard: wizardStore}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/studies", h.studies)
	mux.HandleFunc("/v1/studies/", h.studyByName)
	mux.HandleFunc("/v1/wizard/begin", h.wizardBegin)
	mux.HandleFunc("/v1/wizard/weekdays", h.wizardWeekdays)
	mux.HandleFunc("/v1/wizard/start-time", h.wizardStartTime)
	mux.HandleFunc("/v1/wizard/complete", h.wizardComplete)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) studies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createStudy(w, r)
	case http.MethodGet:
		h.listStudies(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// studyByName dispatches /v1/studies/{name}[/members|/attendance|/attendance/history].
func (h *Handler) studyByName(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/studies/")
	name, sub, _ := strings.Cut(rest, "/")
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing study name")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		h.deleteStudy(w, r, name)
	case sub == "members" && r.Method == http.MethodPost:
		h.addMembers(w, r, name)
	case sub == "attendance" && r.Method == http.MethodGet:
		h.attendanceReport(w, r, name)
	case sub == "attendance/history" && r.Method == http.MethodGet:
		h.attendanceHistory(w, r, name)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createStudy(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeStudiesWrite); !ok {
		return
	}

	var req CreateStudyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	h.finishCreate(w, r, domain.CreateStudyInput{
		Name:         req.Name,
		Weekdays:     req.Weekdays,
		StartTime:    req.StartTime,
		RoomID:       req.RoomID,
		Participants: req.Participants,
	})
}

func (h *Handler) finishCreate(w http.ResponseWriter, r *http.Request, input domain.CreateStudyInput) {
	if err := h.service.CreateStudy(r.Context(), input); err != nil {
		if errors.Is(err, domain.ErrNameConflict) {
			writeError(w, http.StatusConflict, "name_conflict", "a study with this name already exists")
			return
		}
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, CreateStudyResponse{
		Name:         input.Name,
		Weekdays:     domain.NormalizeWeekdays(input.Weekdays),
		StartTime:    input.StartTime,
		RoomID:       input.RoomID,
		Participants: input.Participants,
	})
}

func (h *Handler) listStudies(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeStudiesRead, auth.ScopeStudiesWrite); !ok {
		return
	}

	studies, err := h.service.ListStudies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]StudyView, 0, len(studies))
	for _, study := range studies {
		items = append(items, toStudyView(study))
	}
	writeJSON(w, http.StatusOK, ListStudiesResponse{Items: items})
}

func (h *Handler) deleteStudy(w http.ResponseWriter, r *http.Request, name string) {
	if _, ok := requireScope(w, r, auth.ScopeStudiesWrite); !ok {
		return
	}

	if err := h.service.DeleteStudy(r.Context(), name); err != nil {
		if errors.Is(err, domain.ErrStudyNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "study not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addMembers(w http.ResponseWriter, r *http.Request, name string) {
	if _, ok := requireScope(w, r, auth.ScopeStudiesWrite); !ok {
		return
	}

	var req AddMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if len(req.MemberIDs) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "member_ids is required")
		return
	}

	added, err := h.service.AddMembers(r.Context(), name, req.MemberIDs)
	if err != nil {
		if errors.Is(err, domain.ErrStudyNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "study not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AddMembersResponse{Added: added})
}

func (h *Handler) attendanceReport(w http.ResponseWriter, r *http.Request, name string) {
	if _, ok := requireScope(w, r, auth.ScopeStudiesRead, auth.ScopeStudiesWrite); !ok {
		return
	}

	report, err := h.service.Report(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrStudyNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "study not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := ReportResponse{StudyName: report.StudyName, Members: report.Members, Dates: make([]DateReportView, 0, len(report.Dates))}
	for _, day := range report.Dates {
		view := DateReportView{Date: day.Date, Entries: make([]MemberStatusView, 0, len(day.Entries))}
		for _, entry := range day.Entries {
			view.Entries = append(view.Entries, MemberStatusView{
				MemberID:    entry.MemberID,
				CheckinTime: entry.CheckinTime,
				Status:      string(entry.Status),
			})
		}
		resp.Dates = append(resp.Dates, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) attendanceHistory(w http.ResponseWriter, r *http.Request, name string) {
	if _, ok := requireScope(w, r, auth.ScopeStudiesRead, auth.ScopeStudiesWrite); !ok {
		return
	}

	records, err := h.service.History(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]HistoryEntryView, 0, len(records))
	for _, record := range records {
		items = append(items, HistoryEntryView{
			Date:        record.Date,
			MemberID:    record.MemberID,
			CheckinTime: record.CheckinTime,
			Status:      string(record.Status),
		})
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: items})
}

func (h *Handler) wizardBegin(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeStudiesWrite)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req WizardBeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.StudyName) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "study_name is required")
		return
	}

	h.wizard.Begin(claims.Subject, req.StudyName, req.Participants)
	writeJSON(w, http.StatusOK, WizardStateResponse{Step: "weekdays"})
}

func (h *Handler) wizardWeekdays(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeStudiesWrite)
	if !ok {
		return
	}
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req WizardWeekdaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if len(req.Weekdays) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "weekdays is required")
		return
	}

	if err := h.wizard.SetWeekdays(claims.Subject, req.Weekdays); err != nil {
		writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WizardStateResponse{Step: "start-time"})
}

func (h *Handler) wizardStartTime(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeStudiesWrite)
	if !ok {
		return
	}
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req WizardStartTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if _, _, err := domain.ParseStartTime(req.StartTime); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "start_time must be HH:MM")
		return
	}

	if err := h.wizard.SetStartTime(claims.Subject, req.StartTime); err != nil {
		writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WizardStateResponse{Step: "room"})
}

func (h *Handler) wizardComplete(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeStudiesWrite)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req WizardCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.RoomID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "room_id is required")
		return
	}

	input, err := h.wizard.Complete(claims.Subject, req.RoomID)
	if err != nil {
		writeWizardError(w, err)
		return
	}
	h.finishCreate(w, r, input)
}

// requireScope resolves claims and enforces that at least one scope matches.
func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+strings.Join(scopes, " or ")+" required")
	return nil, false
}

func writeWizardError(w http.ResponseWriter, err error) {
	if errors.Is(err, wizard.ErrSessionExpired) {
		writeError(w, http.StatusGone, "session_expired", "wizard session expired, start again")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}

// CreateStudyRequest is the payload for POST /v1/studies.
type CreateStudyRequest struct {
	Name         string   `json:"name"`
	Weekdays     []int    `json:"weekdays"`
	StartTime    string   `json:"start_time"`
	RoomID       string   `json:"room_id"`
	Participants []string `json:"participants"`
}

// Validate ensures request correctness.
func (r CreateStudyRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if len(r.Weekdays) == 0 {
		return errors.New("weekdays is required")
	}
	for _, day := range r.Weekdays {
		if day < 0 || day > 6 {
			return errors.New("weekdays must be 0 (Monday) through 6 (Sunday)")
		}
	}
	if _, _, err := domain.ParseStartTime(r.StartTime); err != nil {
		return errors.New("start_time must be HH:MM")
	}
	if strings.TrimSpace(r.RoomID) == "" {
		return errors.New("room_id is required")
	}
	return nil
}

// CreateStudyResponse echoes the created study.
type CreateStudyResponse struct {
	Name         string   `json:"name"`
	Weekdays     []int    `json:"weekdays"`
	StartTime    string   `json:"start_time"`
	RoomID       string   `json:"room_id"`
	Participants []string `json:"participants,omitempty"`
}

// AddMembersRequest is the payload for POST /v1/studies/{name}/members.
type AddMembersRequest struct {
	MemberIDs []string `json:"member_ids"`
}

// AddMembersResponse lists the members actually added.
type AddMembersResponse struct {
	Added []string `json:"added"`
}

// StudyView exposes a study with its roster.
type StudyView struct {
	Name      string   `json:"name"`
	Weekdays  []int    `json:"weekdays"`
	StartTime string   `json:"start_time"`
	RoomID    string   `json:"room_id"`
	Members   []string `json:"members"`
}

// ListStudiesResponse packages list results.
type ListStudiesResponse struct {
	Items []StudyView `json:"items"`
}

// MemberStatusView is one member's cell in a report date.
type MemberStatusView struct {
	MemberID    string `json:"member_id"`
	CheckinTime string `json:"checkin_time,omitempty"`
	Status      string `json:"status"`
}

// DateReportView is the roster view for one date.
type DateReportView struct {
	Date    string             `json:"date"`
	Entries []MemberStatusView `json:"entries"`
}

// ReportResponse is the per-date attendance grid for a study.
type ReportResponse struct {
	StudyName string           `json:"study_name"`
	Members   []string         `json:"members"`
	Dates     []DateReportView `json:"dates"`
}

// HistoryEntryView is one raw ledger row.
type HistoryEntryView struct {
	Date        string `json:"date"`
	MemberID    string `json:"member_id"`
	CheckinTime string `json:"checkin_time"`
	Status      string `json:"status"`
}

// HistoryResponse packages raw ledger rows, most recent date first.
type HistoryResponse struct {
	Items []HistoryEntryView `json:"items"`
}

// WizardBeginRequest starts a creation flow.
type WizardBeginRequest struct {
	StudyName    string   `json:"study_name"`
	Participants []string `json:"participants"`
}

// WizardWeekdaysRequest records the weekday step.
type WizardWeekdaysRequest struct {
	Weekdays []int `json:"weekdays"`
}

// WizardStartTimeRequest records the time step.
type WizardStartTimeRequest struct {
	StartTime string `json:"start_time"`
}

// WizardCompleteRequest finishes the flow with a room selection.
type WizardCompleteRequest struct {
	RoomID string `json:"room_id"`
}

// WizardStateResponse names the next step of the flow.
type WizardStateResponse struct {
	Step string `json:"next_step"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toStudyView(study domain.StudyWithMembers) StudyView {
	return StudyView{
		Name:      study.Name,
		Weekdays:  study.Weekdays,
		StartTime: study.StartTime,
		RoomID:    study.RoomID,
		Members:   study.Members,
	}
}
