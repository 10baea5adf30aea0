package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/quest"
	"github.com/dukerupert/questboard/internal/store"
	"github.com/dukerupert/questboard/internal/websocket"
)

type FamilyHandler struct {
	store  *store.Store
	svc    *quest.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewFamilyHandler(st *store.Store, svc *quest.Service, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{store: st, svc: svc, hub: hub, logger: logger}
}

func (h *FamilyHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// familyFromPath resolves {family_id}, writing the error response itself
// when it cannot.
func familyFromPath(w http.ResponseWriter, r *http.Request, st *store.Store, logger *slog.Logger) (*model.Family, bool) {
	id, err := parsePathID(r, "family_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid family id")
		return nil, false
	}
	fam, err := st.Families.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("get family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get family")
		return nil, false
	}
	if fam == nil {
		writeError(w, http.StatusNotFound, "family not found")
		return nil, false
	}
	return fam, true
}

func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	fam, err := h.store.Families.Create(r.Context(), req.Name)
	if err != nil {
		h.logger.Error("create family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family")
		return
	}
	writeJSON(w, http.StatusCreated, fam)
}

type kidRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

func (h *FamilyHandler) CreateKid(w http.ResponseWriter, r *http.Request) {
	fam, ok := familyFromPath(w, r, h.store, h.logger)
	if !ok {
		return
	}

	var req kidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	kid, err := h.store.Kids.Create(r.Context(), fam.ID, req.Name, req.AvatarURL)
	if err != nil {
		h.logger.Error("create kid", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create kid")
		return
	}

	h.broadcast(websocket.NewMessage("kid", "created", fam.ID, kid.ID, nil))
	writeJSON(w, http.StatusCreated, kid)
}

func (h *FamilyHandler) ListKids(w http.ResponseWriter, r *http.Request) {
	fam, ok := familyFromPath(w, r, h.store, h.logger)
	if !ok {
		return
	}

	kids, err := h.store.Kids.ListByFamily(r.Context(), fam.ID)
	if err != nil {
		h.logger.Error("list kids", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list kids")
		return
	}
	if kids == nil {
		kids = []model.Kid{}
	}
	writeJSON(w, http.StatusOK, kids)
}

func (h *FamilyHandler) UpdateKid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req kidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	kid, err := h.store.Kids.Update(r.Context(), id, req.Name, req.AvatarURL, time.Now())
	if err != nil {
		h.logger.Error("update kid", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update kid")
		return
	}
	if kid == nil {
		writeError(w, http.StatusNotFound, "kid not found")
		return
	}

	h.broadcast(websocket.NewMessage("kid", "updated", kid.FamilyID, kid.ID, nil))
	writeJSON(w, http.StatusOK, kid)
}

func (h *FamilyHandler) DeleteKid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	kid, err := h.store.Kids.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get kid", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get kid")
		return
	}
	if kid == nil {
		writeError(w, http.StatusNotFound, "kid not found")
		return
	}

	if err := h.store.Kids.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete kid")
		return
	}

	h.broadcast(websocket.NewMessage("kid", "deleted", kid.FamilyID, id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	p, err := h.svc.Progress(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get progress")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *FamilyHandler) Badges(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	earned, err := h.store.Badges.ListEarned(r.Context(), id)
	if err != nil {
		h.logger.Error("list badges", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list badges")
		return
	}
	if earned == nil {
		earned = []model.KidBadge{}
	}
	writeJSON(w, http.StatusOK, earned)
}

// Activity returns the kid's recent timeline. ?limit defaults to 20.
func (h *FamilyHandler) Activity(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = clamp(n, 1, 100)
	}

	activity, err := h.store.Kids.Activity(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("list activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	if activity == nil {
		activity = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *FamilyHandler) BadgeCatalog(w http.ResponseWriter, r *http.Request) {
	badges, err := h.store.Badges.ListCatalog(r.Context())
	if err != nil {
		h.logger.Error("list badge catalog", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list badges")
		return
	}
	if badges == nil {
		badges = []model.Badge{}
	}
	writeJSON(w, http.StatusOK, badges)
}
