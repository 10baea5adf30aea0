package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dukerupert/questboard/internal/database"
	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/notify"
	"github.com/dukerupert/questboard/internal/quest"
	"github.com/dukerupert/questboard/internal/recurrence"
	"github.com/dukerupert/questboard/internal/store"
	"github.com/dukerupert/questboard/internal/websocket"
)

type testEnv struct {
	mux      *http.ServeMux
	store    *store.Store
	notifier *notify.Notifier
	family   *model.Family
	kid      *model.Kid
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	st := store.New(db)
	hub := websocket.NewHub(logger)
	notifier := notify.NewNotifier(hub, time.Hour, logger)
	t.Cleanup(notifier.Close)
	svc := quest.NewService(st, hub, notifier, nil, logger)
	sched := recurrence.NewScheduler(st.Chores, nil, time.Hour, svc.InstanceCreated, logger)

	familyH := NewFamilyHandler(st, svc, hub, logger)
	choreH := NewChoreHandler(svc, st, sched, logger)
	rewardH := NewRewardHandler(svc, st, hub, logger)
	levelH := NewLevelHandler(notifier, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/families", familyH.Create)
	mux.HandleFunc("POST /api/families/{family_id}/kids", familyH.CreateKid)
	mux.HandleFunc("GET /api/families/{family_id}/kids", familyH.ListKids)
	mux.HandleFunc("PUT /api/kids/{id}", familyH.UpdateKid)
	mux.HandleFunc("DELETE /api/kids/{id}", familyH.DeleteKid)
	mux.HandleFunc("GET /api/kids/{id}/progress", familyH.Progress)
	mux.HandleFunc("GET /api/kids/{id}/badges", familyH.Badges)
	mux.HandleFunc("GET /api/kids/{id}/activity", familyH.Activity)
	mux.HandleFunc("GET /api/badges", familyH.BadgeCatalog)
	mux.HandleFunc("POST /api/families/{family_id}/chores", choreH.Create)
	mux.HandleFunc("GET /api/families/{family_id}/chores", choreH.List)
	mux.HandleFunc("PUT /api/chores/{id}", choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/done", choreH.MarkDone)
	mux.HandleFunc("POST /api/chores/{id}/approve", choreH.Approve)
	mux.HandleFunc("POST /api/recurring/run", choreH.RunRecurring)
	mux.HandleFunc("POST /api/families/{family_id}/rewards", rewardH.Create)
	mux.HandleFunc("GET /api/families/{family_id}/rewards", rewardH.List)
	mux.HandleFunc("DELETE /api/rewards/{id}", rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", rewardH.Redeem)
	mux.HandleFunc("GET /api/level-info", levelH.Info)
	mux.HandleFunc("GET /api/families/{family_id}/level-up", levelH.Current)
	mux.HandleFunc("DELETE /api/notifications/{id}", levelH.Dismiss)

	ctx := context.Background()
	fam, err := st.Families.Create(ctx, "Rivera")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	kid, err := st.Kids.Create(ctx, fam.ID, "Maya", "")
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}
	return &testEnv{mux: mux, store: st, notifier: notifier, family: fam, kid: kid}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) familyPath(suffix string) string {
	return "/api/families/" + strconv.FormatInt(e.family.ID, 10) + suffix
}

func (e *testEnv) createChore(t *testing.T, body map[string]any) model.Chore {
	t.Helper()
	rec := e.do(t, "POST", e.familyPath("/chores"), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create chore: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decode[model.Chore](t, rec)
}

func choreAction(id int64, action string) string {
	return "/api/chores/" + strconv.FormatInt(id, 10) + "/" + action
}

func TestClamp(t *testing.T) {
	tests := []struct {
		n, lo, hi, want int
	}{
		{50, 1, 100, 50},
		{0, 1, 100, 1},
		{-5, 1, 100, 1},
		{1000, 1, 100, 100},
		{501, 1, 500, 500},
	}
	for _, tt := range tests {
		if got := clamp(tt.n, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.n, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestCreateFamily(t *testing.T) {
	e := setupTestEnv(t)

	rec := e.do(t, "POST", "/api/families", map[string]string{"name": "Nguyen"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	fam := decode[model.Family](t, rec)
	if fam.Name != "Nguyen" {
		t.Errorf("name = %q", fam.Name)
	}

	rec = e.do(t, "POST", "/api/families", map[string]string{"name": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank name: status = %d, want 400", rec.Code)
	}
	rec = e.do(t, "POST", "/api/families", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", rec.Code)
	}
}

func TestKidEndpoints(t *testing.T) {
	e := setupTestEnv(t)

	rec := e.do(t, "POST", e.familyPath("/kids"), map[string]string{"name": "Leo"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create kid: status = %d", rec.Code)
	}
	leo := decode[model.Kid](t, rec)

	rec = e.do(t, "GET", e.familyPath("/kids"), nil)
	kids := decode[[]model.Kid](t, rec)
	if len(kids) != 2 {
		t.Fatalf("expected 2 kids, got %d", len(kids))
	}

	rec = e.do(t, "PUT", "/api/kids/"+strconv.FormatInt(leo.ID, 10), map[string]string{"name": "Leonardo"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update kid: status = %d", rec.Code)
	}
	if got := decode[model.Kid](t, rec); got.Name != "Leonardo" {
		t.Errorf("name = %q", got.Name)
	}

	rec = e.do(t, "DELETE", "/api/kids/"+strconv.FormatInt(leo.ID, 10), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete kid: status = %d", rec.Code)
	}
	rec = e.do(t, "DELETE", "/api/kids/"+strconv.FormatInt(leo.ID, 10), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing kid: status = %d, want 404", rec.Code)
	}

	rec = e.do(t, "GET", "/api/families/999/kids", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown family: status = %d, want 404", rec.Code)
	}
	rec = e.do(t, "GET", "/api/families/abc/kids", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad family id: status = %d, want 400", rec.Code)
	}
}

func TestCreateChoreClampsPoints(t *testing.T) {
	e := setupTestEnv(t)

	c := e.createChore(t, map[string]any{"title": "Mow lawn", "points": 1000})
	if c.Points != 100 {
		t.Errorf("points = %d, want 100", c.Points)
	}
	c = e.createChore(t, map[string]any{"title": "Water plants", "points": -3})
	if c.Points != 1 {
		t.Errorf("points = %d, want 1", c.Points)
	}
	c = e.createChore(t, map[string]any{"title": "Sweep"})
	if c.Points != 10 {
		t.Errorf("default points = %d, want 10", c.Points)
	}
}

func TestCreateChoreValidation(t *testing.T) {
	e := setupTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"points": 5}},
		{"bad difficulty", map[string]any{"title": "x", "difficulty": "epic"}},
		{"bad pattern", map[string]any{"title": "x", "recurrence_pattern": "monthly"}},
		{"bad due date", map[string]any{"title": "x", "due_date": "tomorrow"}},
		{"unknown kid", map[string]any{"title": "x", "assigned_to": 999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, "POST", e.familyPath("/chores"), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestChoreLifecycleEndpoints(t *testing.T) {
	e := setupTestEnv(t)
	c := e.createChore(t, map[string]any{
		"title":       "Clean room",
		"points":      30,
		"difficulty":  "hard",
		"assigned_to": e.kid.ID,
		"due_date":    "2024-03-12",
	})

	// Approving a pending chore is a conflict.
	rec := e.do(t, "POST", choreAction(c.ID, "approve"), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("approve pending: status = %d, want 409", rec.Code)
	}

	rec = e.do(t, "POST", choreAction(c.ID, "done"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("done: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decode[model.Chore](t, rec); got.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}

	rec = e.do(t, "POST", choreAction(c.ID, "done"), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("done twice: status = %d, want 409", rec.Code)
	}

	rec = e.do(t, "POST", choreAction(c.ID, "approve"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	res := decode[quest.ApprovalResult](t, rec)
	if res.Award.XP != 50 || res.Award.Points != 30 {
		t.Errorf("award = %+v, want 50 xp / 30 points", res.Award)
	}
	if len(res.NewBadges) == 0 || res.NewBadges[0].Name != "First Quest" {
		t.Errorf("new badges = %+v", res.NewBadges)
	}

	rec = e.do(t, "GET", "/api/kids/"+strconv.FormatInt(e.kid.ID, 10)+"/progress", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("progress: status = %d", rec.Code)
	}
	p := decode[quest.Progress](t, rec)
	if p.Kid.TotalXP != 50 || p.Level.Level != 1 || p.Streak != 1 || !p.StreakActive {
		t.Errorf("progress = %+v", p)
	}

	rec = e.do(t, "GET", "/api/kids/"+strconv.FormatInt(e.kid.ID, 10)+"/badges", nil)
	if badges := decode[[]model.KidBadge](t, rec); len(badges) != 1 {
		t.Errorf("expected 1 earned badge, got %d", len(badges))
	}

	rec = e.do(t, "GET", "/api/kids/"+strconv.FormatInt(e.kid.ID, 10)+"/activity", nil)
	if activity := decode[[]model.Activity](t, rec); len(activity) != 2 {
		t.Errorf("expected approval and badge in activity, got %+v", activity)
	}

	rec = e.do(t, "POST", choreAction(999, "done"), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown chore: status = %d, want 404", rec.Code)
	}
}

func TestApproveLevelUpAndDismiss(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()

	e.kid.TotalXP = 80
	e.kid.UpdatedAt = time.Now()
	if err := e.store.Kids.SaveProgress(ctx, *e.kid); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	c := e.createChore(t, map[string]any{"title": "Garage", "difficulty": "hard", "assigned_to": e.kid.ID})
	e.do(t, "POST", choreAction(c.ID, "done"), nil)

	rec := e.do(t, "POST", choreAction(c.ID, "approve"), nil)
	res := decode[quest.ApprovalResult](t, rec)
	if !res.Award.LevelUp.LeveledUp || res.Notification == nil {
		t.Fatalf("expected level up notification, got %+v", res)
	}

	rec = e.do(t, "GET", e.familyPath("/level-up"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("current level up: status = %d", rec.Code)
	}
	if got := decode[notify.LevelUp](t, rec); got.ID != res.Notification.ID || got.NewLevel != 2 {
		t.Errorf("live notification = %+v", got)
	}

	rec = e.do(t, "DELETE", "/api/notifications/"+res.Notification.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("dismiss: status = %d", rec.Code)
	}
	rec = e.do(t, "DELETE", "/api/notifications/"+res.Notification.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("second dismiss: status = %d", rec.Code)
	}
	rec = e.do(t, "GET", e.familyPath("/level-up"), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("after dismiss: status = %d, want 204", rec.Code)
	}
}

func TestUpdateChoreIsUnconstrained(t *testing.T) {
	e := setupTestEnv(t)
	c := e.createChore(t, map[string]any{"title": "Dishes"})

	rec := e.do(t, "PUT", "/api/chores/"+strconv.FormatInt(c.ID, 10), map[string]any{
		"title":  "Dishes (all)",
		"status": "approved",
		"points": 500,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decode[model.Chore](t, rec)
	if got.Status != model.StatusApproved || got.Points != 100 {
		t.Errorf("updated = %+v", got)
	}

	rec = e.do(t, "PUT", "/api/chores/999", map[string]any{"title": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing chore: status = %d, want 404", rec.Code)
	}
}

func TestListChoresActiveFilter(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	e.createChore(t, map[string]any{"title": "Open"})
	old := e.createChore(t, map[string]any{"title": "Old"})

	old.Status = model.StatusApproved
	if _, err := e.store.Chores.Update(ctx, old, time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatalf("age chore: %v", err)
	}

	rec := e.do(t, "GET", e.familyPath("/chores"), nil)
	if all := decode[[]model.Chore](t, rec); len(all) != 2 {
		t.Errorf("all chores = %d, want 2", len(all))
	}
	rec = e.do(t, "GET", e.familyPath("/chores?active=1"), nil)
	active := decode[[]model.Chore](t, rec)
	if len(active) != 1 || active[0].Title != "Open" {
		t.Errorf("active chores = %+v", active)
	}

	rec = e.do(t, "GET", e.familyPath("/chores?grouped=1"), nil)
	g := decode[recurrence.Grouped](t, rec)
	if len(g.OneTime) != 1 {
		t.Errorf("grouped one-time = %d, want 1", len(g.OneTime))
	}
}

func TestDeleteChore(t *testing.T) {
	e := setupTestEnv(t)
	c := e.createChore(t, map[string]any{"title": "Trash"})

	path := "/api/chores/" + strconv.FormatInt(c.ID, 10)
	if rec := e.do(t, "DELETE", path, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d", rec.Code)
	}
	if rec := e.do(t, "DELETE", path, nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete again: status = %d, want 404", rec.Code)
	}
}

func TestRunRecurring(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()

	tmpl := e.createChore(t, map[string]any{"title": "Make bed", "recurrence_pattern": "daily"})
	// Pretend the template was last touched two days ago.
	if _, err := e.store.Chores.Update(ctx, tmpl, time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatalf("age template: %v", err)
	}

	rec := e.do(t, "POST", "/api/recurring/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("run: status = %d", rec.Code)
	}
	out := decode[map[string][]model.Chore](t, rec)
	if len(out["created"]) != 1 {
		t.Fatalf("created = %d, want 1", len(out["created"]))
	}
	if id := out["created"][0].TemplateID; id == nil || *id != tmpl.ID {
		t.Errorf("template_id = %v, want %d", id, tmpl.ID)
	}

	rec = e.do(t, "POST", "/api/recurring/run", nil)
	out = decode[map[string][]model.Chore](t, rec)
	if len(out["created"]) != 0 {
		t.Errorf("second run created %d, want 0", len(out["created"]))
	}
}

func TestRewardEndpoints(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()

	rec := e.do(t, "POST", e.familyPath("/rewards"), map[string]any{"title": "Pony", "cost": 9000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create reward: status = %d", rec.Code)
	}
	pony := decode[model.Reward](t, rec)
	if pony.Cost != 500 {
		t.Errorf("cost = %d, want 500", pony.Cost)
	}

	rec = e.do(t, "POST", e.familyPath("/rewards"), map[string]any{"title": "Sticker", "cost": 5})
	sticker := decode[model.Reward](t, rec)

	e.kid.Points = 12
	e.kid.UpdatedAt = time.Now()
	if err := e.store.Kids.SaveProgress(ctx, *e.kid); err != nil {
		t.Fatalf("save progress: %v", err)
	}

	redeem := func(id int64, kidID int64) *httptest.ResponseRecorder {
		return e.do(t, "POST", "/api/rewards/"+strconv.FormatInt(id, 10)+"/redeem", map[string]int64{"kid_id": kidID})
	}

	rec = redeem(sticker.ID, e.kid.ID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("redeem: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decode[map[string]any](t, rec); body["points"] != float64(7) {
		t.Errorf("points after redeem = %v, want 7", body["points"])
	}

	if rec = redeem(pony.ID, e.kid.ID); rec.Code != http.StatusBadRequest {
		t.Errorf("insufficient points: status = %d, want 400", rec.Code)
	}
	if rec = redeem(999, e.kid.ID); rec.Code != http.StatusNotFound {
		t.Errorf("unknown reward: status = %d, want 404", rec.Code)
	}
	if rec = e.do(t, "POST", "/api/rewards/1/redeem", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing kid: status = %d, want 400", rec.Code)
	}

	rec = e.do(t, "GET", e.familyPath("/rewards"), nil)
	if rewards := decode[[]model.Reward](t, rec); len(rewards) != 2 {
		t.Errorf("rewards = %d, want 2", len(rewards))
	}
	if rec = e.do(t, "DELETE", "/api/rewards/"+strconv.FormatInt(pony.ID, 10), nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete reward: status = %d", rec.Code)
	}
}

func TestLevelInfo(t *testing.T) {
	e := setupTestEnv(t)

	rec := e.do(t, "GET", "/api/level-info?xp=150", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	info := decode[map[string]any](t, rec)
	if info["level"] != float64(2) || info["xp_to_next_level"] != float64(250) {
		t.Errorf("info = %v", info)
	}

	if rec = e.do(t, "GET", "/api/level-info?xp=lots", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad xp: status = %d, want 400", rec.Code)
	}
}

func TestBadgeCatalog(t *testing.T) {
	e := setupTestEnv(t)

	rec := e.do(t, "GET", "/api/badges", nil)
	if badges := decode[[]model.Badge](t, rec); len(badges) != 7 {
		t.Errorf("catalog = %d badges, want 7", len(badges))
	}
}
