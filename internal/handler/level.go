package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/questboard/internal/notify"
	"github.com/dukerupert/questboard/internal/progression"
)

// LevelUpBoard is the live level-up notification state. Satisfied by
// *notify.Notifier.
type LevelUpBoard interface {
	Current(familyID int64) (notify.LevelUp, bool)
	Dismiss(id string) bool
}

type LevelHandler struct {
	board  LevelUpBoard
	logger *slog.Logger
}

func NewLevelHandler(board LevelUpBoard, logger *slog.Logger) *LevelHandler {
	return &LevelHandler{board: board, logger: logger}
}

// Info reports level progress for ?xp=N.
func (h *LevelHandler) Info(w http.ResponseWriter, r *http.Request) {
	xp, err := strconv.Atoi(r.URL.Query().Get("xp"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "xp must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, progression.LevelInfo(xp))
}

func (h *LevelHandler) Current(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathID(r, "family_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid family id")
		return
	}
	ev, ok := h.board.Current(familyID)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Dismiss closes a level-up notification. Dismissing one that is already
// gone is not an error.
func (h *LevelHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.board.Dismiss(id) {
		h.logger.Debug("level up dismissed", "notification_id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}
