package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/tolkbridge/tolka/internal/booking"
	"github.com/tolkbridge/tolka/internal/models"
)

// BookingsHandler exposes the booking lifecycle over HTTP. Legacy clients
// send yes/no string flags; those are normalized to booleans here and
// never reach the core.
type BookingsHandler struct {
	svc *booking.Service
}

func NewBookingsHandler(svc *booking.Service) *BookingsHandler {
	return &BookingsHandler{svc: svc}
}

type createBookingRequest struct {
	FromLanguageID       int64    `json:"from_language_id"`
	Immediate            string   `json:"immediate"` // yes/no
	DueDate              string   `json:"due_date"`  // "01/02/2006"
	DueTime              string   `json:"due_time"`  // "15:04"
	CustomerPhoneType    *string  `json:"customer_phone_type"` // yes/no, absent = no choice made
	CustomerPhysicalType string   `json:"customer_physical_type"`
	Duration             int      `json:"duration"`
	JobFor               []string `json:"job_for"`
	Town                 string   `json:"town"`
	Address              string   `json:"address"`
	Instructions         string   `json:"instructions"`
	SpecificTranslatorID int64    `json:"specific_translator_id"`
}

func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var phoneType *bool
	if req.CustomerPhoneType != nil {
		v := models.YesNo(*req.CustomerPhoneType)
		phoneType = &v
	}

	res := h.svc.Create(r.Context(), userID, booking.CreateRequest{
		FromLanguageID:       req.FromLanguageID,
		Immediate:            models.YesNo(req.Immediate),
		DueDate:              req.DueDate,
		DueTime:              req.DueTime,
		CustomerPhoneType:    phoneType,
		CustomerPhysicalType: models.YesNo(req.CustomerPhysicalType),
		Duration:             req.Duration,
		JobFor:               req.JobFor,
		Town:                 req.Town,
		Address:              req.Address,
		Instructions:         req.Instructions,
		SpecificTranslatorID: req.SpecificTranslatorID,
	})
	writeResult(w, res)
}

type jobEmailRequest struct {
	UserEmail    string `json:"user_email"`
	Reference    string `json:"reference"`
	Address      string `json:"address"`
	Instructions string `json:"instructions"`
	Town         string `json:"town"`
}

func (h *BookingsHandler) StoreEmail(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req jobEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	res := h.svc.StoreJobEmail(r.Context(), jobID, booking.JobEmailRequest{
		UserEmail:    req.UserEmail,
		Reference:    req.Reference,
		Address:      req.Address,
		Instructions: req.Instructions,
		Town:         req.Town,
	})
	writeResult(w, res)
}

type updateBookingRequest struct {
	Status          string  `json:"status"`
	AdminComments   string  `json:"admin_comments"`
	SessionTime     string  `json:"session_time"`
	DueDate         string  `json:"due_date"`
	DueTime         string  `json:"due_time"`
	FromLanguageID  *int64  `json:"from_language_id"`
	TranslatorID    int64   `json:"translator_id"`
	TranslatorEmail string  `json:"translator_email"`
	Reference       *string `json:"reference"`
}

func (h *BookingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	change := booking.ChangeRequest{
		AdminComments: req.AdminComments,
		SessionTime:   req.SessionTime,
		TranslatorID:  req.TranslatorID,
	}
	if req.Status != "" {
		status := models.JobStatus(req.Status)
		if !status.Valid() {
			http.Error(w, "Invalid status", http.StatusBadRequest)
			return
		}
		change.Status = status
	}
	if req.FromLanguageID != nil {
		change.FromLanguageID = req.FromLanguageID
	}
	if req.DueDate != "" && req.DueTime != "" {
		due, err := booking.ParseDue(req.DueDate, req.DueTime)
		if err != nil {
			http.Error(w, "Invalid due date", http.StatusBadRequest)
			return
		}
		change.Due = &due
	}

	res := h.svc.Update(r.Context(), jobID, userID, booking.UpdateRequest{
		ChangeRequest:   change,
		TranslatorEmail: req.TranslatorEmail,
		Reference:       req.Reference,
	})
	writeResult(w, res)
}

func (h *BookingsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		JobID int64 `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == 0 {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	writeResult(w, h.svc.Accept(r.Context(), req.JobID, userID))
}

func (h *BookingsHandler) AcceptWithID(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}
	writeResult(w, h.svc.AcceptWithID(r.Context(), jobID, userID))
}

func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}
	writeResult(w, h.svc.Cancel(r.Context(), jobID, userID))
}

func (h *BookingsHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}
	writeResult(w, h.svc.End(r.Context(), jobID, userID))
}

func (h *BookingsHandler) NotCarriedOut(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}
	writeResult(w, h.svc.CustomerNotCall(r.Context(), jobID))
}

func (h *BookingsHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(w, r)
	if !ok {
		return
	}
	writeResult(w, h.svc.Reopen(r.Context(), jobID))
}

func (h *BookingsHandler) Potential(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	jobs, err := h.svc.PotentialJobs(r.Context(), userID)
	if err != nil {
		logger.Error("potential jobs", "user_id", userID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"jobs": jobs})
}

func (h *BookingsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	feed, err := h.svc.UserJobs(r.Context(), userID)
	if err != nil {
		logger.Error("user jobs", "user_id", userID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(feed)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeResult maps business outcomes onto the wire: fail results are still
// HTTP 200 because they are expected domain answers, except not-found.
func writeResult(w http.ResponseWriter, res *booking.Result) {
	w.Header().Set("Content-Type", "application/json")
	if res.Status == "fail" && res.Message == "not found" {
		w.WriteHeader(http.StatusNotFound)
	} else if res.Status == "fail" && res.Message == "internal error" {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(res)
}
