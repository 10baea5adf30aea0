package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/quest"
	"github.com/dukerupert/questboard/internal/store"
	"github.com/dukerupert/questboard/internal/websocket"
)

type RewardHandler struct {
	svc    *quest.Service
	store  *store.Store
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewRewardHandler(svc *quest.Service, st *store.Store, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{svc: svc, store: st, hub: hub, logger: logger}
}

func (h *RewardHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type rewardRequest struct {
	Title string `json:"title"`
	Cost  int    `json:"cost"`
	Icon  string `json:"icon"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	fam, ok := familyFromPath(w, r, h.store, h.logger)
	if !ok {
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	reward, err := h.store.Rewards.Create(r.Context(), fam.ID, req.Title, clamp(req.Cost, minCost, maxCost), req.Icon)
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "created", fam.ID, reward.ID, nil))
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	fam, ok := familyFromPath(w, r, h.store, h.logger)
	if !ok {
		return
	}

	rewards, err := h.store.Rewards.ListByFamily(r.Context(), fam.ID)
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	reward, err := h.store.Rewards.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if reward == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	if err := h.store.Rewards.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete reward")
		return
	}

	h.broadcast(websocket.NewMessage("reward", "deleted", reward.FamilyID, id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		KidID int64 `json:"kid_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.KidID == 0 {
		writeError(w, http.StatusBadRequest, "kid_id is required")
		return
	}

	redemption, kid, err := h.svc.Redeem(r.Context(), id, req.KidID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to redeem reward")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"redemption": redemption,
		"points":     kid.Points,
	})
}
