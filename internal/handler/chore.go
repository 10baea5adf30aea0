package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/quest"
	"github.com/dukerupert/questboard/internal/store"
)

// RecurrenceRunner triggers a recurrence pass on demand.
type RecurrenceRunner interface {
	Run(ctx context.Context) ([]model.Chore, error)
}

type ChoreHandler struct {
	svc       *quest.Service
	store     *store.Store
	recurring RecurrenceRunner
	logger    *slog.Logger
}

func NewChoreHandler(svc *quest.Service, st *store.Store, recurring RecurrenceRunner, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{svc: svc, store: st, recurring: recurring, logger: logger}
}

type choreRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Points            int    `json:"points"`
	AssignedTo        *int64 `json:"assigned_to"`
	DueDate           string `json:"due_date"`
	Difficulty        string `json:"difficulty"`
	Status            string `json:"status"`
	RecurrencePattern string `json:"recurrence_pattern"`
}

// toChore normalizes the request. Points outside 1-100 are clamped, a
// missing value defaults to 10.
func (req choreRequest) toChore() (model.Chore, string) {
	c := model.Chore{
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		Points:            req.Points,
		AssignedTo:        req.AssignedTo,
		Difficulty:        model.Difficulty(strings.ToLower(req.Difficulty)),
		Status:            model.Status(strings.ToLower(req.Status)),
		RecurrencePattern: req.RecurrencePattern,
	}
	if c.Title == "" {
		return c, "title is required"
	}
	if c.Points == 0 {
		c.Points = defaultPoints
	}
	c.Points = clamp(c.Points, minPoints, maxPoints)

	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return c, "due_date must be YYYY-MM-DD"
		}
		c.DueDate = &due
	}
	return c, ""
}

// checkAssignee verifies the assignee exists and belongs to the family.
func (h *ChoreHandler) checkAssignee(w http.ResponseWriter, r *http.Request, familyID int64, kidID *int64) bool {
	if kidID == nil {
		return true
	}
	kid, err := h.store.Kids.GetByID(r.Context(), *kidID)
	if err != nil {
		h.logger.Error("get kid", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check kid")
		return false
	}
	if kid == nil || kid.FamilyID != familyID {
		writeError(w, http.StatusBadRequest, "kid not found")
		return false
	}
	return true
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	fam, ok := familyFromPath(w, r, h.store, h.logger)
	if !ok {
		return
	}

	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c, problem := req.toChore()
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	if !h.checkAssignee(w, r, fam.ID, c.AssignedTo) {
		return
	}
	c.FamilyID = fam.ID

	created, err := h.svc.CreateChore(r.Context(), c)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create chore")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// List returns the family's chores. ?active=1 hides approved chores older
// than a day; ?grouped=1 buckets the active chores by recurrence.
func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	fam, ok := familyFromPath(w, r, h.store, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	if q.Get("grouped") == "1" {
		g, err := h.svc.GroupedChores(r.Context(), fam.ID)
		if err != nil {
			writeServiceError(w, h.logger, err, "failed to list chores")
			return
		}
		writeJSON(w, http.StatusOK, g)
		return
	}

	chores, err := h.svc.Chores(r.Context(), fam.ID, q.Get("active") == "1")
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list chores")
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.store.Chores.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	c, problem := req.toChore()
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	if !h.checkAssignee(w, r, existing.FamilyID, c.AssignedTo) {
		return
	}
	c.ID = id
	c.FamilyID = existing.FamilyID

	updated, err := h.svc.EditChore(r.Context(), c)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update chore")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.DeleteChore(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete chore")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChoreHandler) MarkDone(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	c, err := h.svc.MarkDone(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to complete chore")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	res, err := h.svc.Approve(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to approve chore")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RunRecurring materializes due recurring chores immediately.
func (h *ChoreHandler) RunRecurring(w http.ResponseWriter, r *http.Request) {
	created, err := h.recurring.Run(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to run recurrence")
		return
	}
	if created == nil {
		created = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": created})
}
