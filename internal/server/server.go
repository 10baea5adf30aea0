package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/questboard/internal/handler"
	"github.com/dukerupert/questboard/internal/middleware"
	"github.com/dukerupert/questboard/internal/notify"
	"github.com/dukerupert/questboard/internal/quest"
	"github.com/dukerupert/questboard/internal/recurrence"
	"github.com/dukerupert/questboard/internal/store"
	ws "github.com/dukerupert/questboard/internal/websocket"
)

// Options tunes the background workers.
type Options struct {
	// Now returns the current time in the household's time zone.
	Now                func() time.Time
	RecurrenceInterval time.Duration
	LevelUpDismiss     time.Duration

	// ActionLimit caps state-changing chore and reward actions per client
	// per minute. Zero disables the limit.
	ActionLimit int
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	store       *store.Store
	service     *quest.Service
	notifier    *notify.Notifier
	scheduler   *recurrence.Scheduler
	familyH     *handler.FamilyHandler
	choreH      *handler.ChoreHandler
	rewardH     *handler.RewardHandler
	levelH      *handler.LevelHandler
	rateLimiter *middleware.RateLimiter
	actionLimit int
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	st := store.New(db)
	notifier := notify.NewNotifier(hub, opts.LevelUpDismiss, logger.With("component", "levelup"))
	svc := quest.NewService(st, hub, notifier, opts.Now, logger.With("component", "quest"))
	scheduler := recurrence.NewScheduler(st.Chores, opts.Now, opts.RecurrenceInterval, svc.InstanceCreated, logger.With("component", "recurrence"))

	return &Server{
		db:          db,
		hub:         hub,
		store:       st,
		service:     svc,
		notifier:    notifier,
		scheduler:   scheduler,
		familyH:     handler.NewFamilyHandler(st, svc, hub, logger.With("component", "family")),
		choreH:      handler.NewChoreHandler(svc, st, scheduler, logger.With("component", "chore")),
		rewardH:     handler.NewRewardHandler(svc, st, hub, logger.With("component", "reward")),
		levelH:      handler.NewLevelHandler(notifier, logger.With("component", "level")),
		rateLimiter: middleware.NewRateLimiter(),
		actionLimit: opts.ActionLimit,
		logger:      logger,
	}
}

// Start launches the recurrence scheduler and the rate limiter sweeper. Both
// stop when ctx is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) {
	s.scheduler.Start(ctx)
	go s.rateLimiter.Sweep(ctx, time.Minute)
}

// Close stops background work. Nothing fires after it returns.
func (s *Server) Close() {
	s.scheduler.Stop()
	s.notifier.Close()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	mux.HandleFunc("POST /api/families", s.familyH.Create)
	mux.HandleFunc("POST /api/families/{family_id}/kids", s.familyH.CreateKid)
	mux.HandleFunc("GET /api/families/{family_id}/kids", s.familyH.ListKids)
	mux.HandleFunc("PUT /api/kids/{id}", s.familyH.UpdateKid)
	mux.HandleFunc("DELETE /api/kids/{id}", s.familyH.DeleteKid)
	mux.HandleFunc("GET /api/kids/{id}/progress", s.familyH.Progress)
	mux.HandleFunc("GET /api/kids/{id}/badges", s.familyH.Badges)
	mux.HandleFunc("GET /api/kids/{id}/activity", s.familyH.Activity)
	mux.HandleFunc("GET /api/badges", s.familyH.BadgeCatalog)

	// Chore API routes
	mux.HandleFunc("POST /api/families/{family_id}/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/families/{family_id}/chores", s.choreH.List)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/done", s.limited(s.choreH.MarkDone))
	mux.HandleFunc("POST /api/chores/{id}/approve", s.limited(s.choreH.Approve))
	mux.HandleFunc("POST /api/recurring/run", s.choreH.RunRecurring)

	// Rewards API routes
	mux.HandleFunc("POST /api/families/{family_id}/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/families/{family_id}/rewards", s.rewardH.List)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.limited(s.rewardH.Redeem))

	// Levels and level-up notifications
	mux.HandleFunc("GET /api/level-info", s.levelH.Info)
	mux.HandleFunc("GET /api/families/{family_id}/level-up", s.levelH.Current)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.levelH.Dismiss)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "database unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	if s.actionLimit <= 0 {
		return h
	}
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.actionLimit, time.Minute)
	return rl(h).ServeHTTP
}
