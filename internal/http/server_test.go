package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/planner"
	"github.com/fyrsmithlabs/questd/internal/store"
	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/fyrsmithlabs/questd/pkg/auth"
)

const testSecret = "http-test-secret-that-is-32-bytes-or-more"

type recordingPublisher struct {
	mu           sync.Mutex
	missions     []string
	participants []string
}

func (r *recordingPublisher) MissionCreated(_ context.Context, m *store.Mission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missions = append(r.missions, m.ID)
	return nil
}

func (r *recordingPublisher) ParticipantJoined(_ context.Context, p *store.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants = append(r.participants, p.UserID)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type testEnv struct {
	srv    *Server
	store  *store.Store
	events *recordingPublisher
	tokens *auth.TokenIssuer
}

func setupTestServer(t *testing.T, gen planner.Generator) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := config.Default()
	cfg.Database.DSN = config.Secret("file:" + filepath.Join(t.TempDir(), "http.db"))

	st, err := store.Open(ctx, cfg.Database, store.WithPasswordHasher(auth.NewPasswordHasher(bcrypt.MinCost)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour, "questd")
	require.NoError(t, err)

	pub := &recordingPublisher{}
	reg := prometheus.NewRegistry()
	pl := planner.New(cfg.Planner, gen, st,
		planner.WithPublisher(pub),
		planner.WithMetrics(planner.NewMetrics(reg)),
	)

	srv, err := NewServer(cfg, Deps{
		Store:    st,
		Planner:  pl,
		Tokens:   tokens,
		Events:   pub,
		Gatherer: reg,
	}, zap.NewNop())
	require.NoError(t, err)

	return &testEnv{srv: srv, store: st, events: pub, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) user(t *testing.T, username string) (*store.User, string) {
	t.Helper()
	u, err := e.store.CreateUser(context.Background(), store.NewUser{
		Email: username + "@example.com", Username: username, Password: "pw-" + username,
	})
	require.NoError(t, err)
	token, _, err := e.tokens.Issue(username)
	require.NoError(t, err)
	return u, token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["message"]
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(config.Default(), Deps{}, nil)
	assert.ErrorContains(t, err, "logger is required")

	_, err = NewServer(config.Default(), Deps{}, zap.NewNop())
	assert.ErrorContains(t, err, "required")
}

func TestHandleHealth(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Database)
	assert.Equal(t, "questd", resp.Service)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestUsers(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/users", CreateUserRequest{
		Email: "ada@example.com", Username: "ada", Password: "analytical",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "analytical")
	assert.NotContains(t, rec.Body.String(), "password")
	created := decode[store.User](t, rec)

	rec = env.do(t, http.MethodPost, "/users/", CreateUserRequest{
		Email: "other@example.com", Username: "ada", Password: "x",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, message(t, rec), "already exists")

	rec = env.do(t, http.MethodGet, "/users", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]store.User](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/users/"+created.ID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada", decode[store.User](t, rec).Username)

	rec = env.do(t, http.MethodGet, "/users/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/"+uuid.NewString()+"/missions", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogin(t *testing.T) {
	env := setupTestServer(t, nil)
	env.user(t, "ada")

	login := func(username, password string) *httptest.ResponseRecorder {
		form := url.Values{"username": {username}, "password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		env.srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := login("ada", "pw-ada")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[LoginResponse](t, rec)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, "ada", resp.User.Username)

	rec = env.do(t, http.MethodGet, "/auth/me", nil, resp.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada", decode[store.User](t, rec).Username)

	for _, bad := range [][2]string{{"ada", "wrong"}, {"nobody", "pw-ada"}} {
		rec = login(bad[0], bad[1])
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	}
}

func TestAuthRequired(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/missions", CreateMissionRequest{Name: "x"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = env.do(t, http.MethodGet, "/auth/me", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A valid token for a user that does not exist.
	token, _, err := env.tokens.Issue("ghost")
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMissions(t *testing.T) {
	env := setupTestServer(t, nil)
	ada, token := env.user(t, "ada")
	bob, _ := env.user(t, "bob")

	rec := env.do(t, http.MethodPost, "/missions", CreateMissionRequest{Name: "Launch", Description: "Ship"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decode[store.Mission](t, rec)
	assert.Equal(t, ada.ID, m.CreatedByID)
	assert.Equal(t, []string{m.ID}, env.events.missions)

	rec = env.do(t, http.MethodPost, "/missions", CreateMissionRequest{Name: "Orphan", CreatedByID: uuid.NewString()}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/missions/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]store.Mission](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/missions/"+m.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"participants":[]`)

	rec = env.do(t, http.MethodGet, "/missions/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	path := "/missions/" + m.ID + "/participants"
	rec = env.do(t, http.MethodPost, path, AddParticipantRequest{UserID: bob.ID}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decode[store.Participant](t, rec).TotalPoints)
	assert.Equal(t, []string{bob.ID}, env.events.participants)

	rec = env.do(t, http.MethodPost, path, AddParticipantRequest{UserID: bob.ID}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path, AddParticipantRequest{UserID: uuid.NewString()}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/missions/"+m.ID+"/leaderboard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[[]store.Participant](t, rec)
	require.Len(t, board, 1)
	require.NotNil(t, board[0].User)
	assert.Equal(t, "bob", board[0].User.Username)

	rec = env.do(t, http.MethodGet, "/missions/"+uuid.NewString()+"/leaderboard", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/"+bob.ID+"/missions", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]store.Mission](t, rec), 1)
}

func TestTasks(t *testing.T) {
	env := setupTestServer(t, nil)
	ada, token := env.user(t, "ada")
	m, err := env.store.CreateMission(context.Background(), store.NewMission{Name: "Study", CreatedByID: ada.ID})
	require.NoError(t, err)
	base := "/missions/" + m.ID + "/tasks"

	rec := env.do(t, http.MethodPost, base, CreateTaskRequest{Title: "Read", Description: "Ch. 1", Points: 10}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[store.Task](t, rec)
	assert.Equal(t, m.ID, task.MissionID)

	rec = env.do(t, http.MethodPost, base, CreateTaskRequest{Title: "Zero", Points: 0}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/missions/"+uuid.NewString()+"/tasks", CreateTaskRequest{Title: "x", Points: 5}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, base+"/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[[]store.Task](t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Read", tasks[0].Title)
	assert.Equal(t, 10, tasks[0].Points)

	rec = env.do(t, http.MethodPatch, base+"/"+task.ID, map[string]any{
		"completed": true,
		"deadline":  "2026-11-01T12:00:00Z",
	}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[store.Task](t, rec)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.Deadline)

	rec = env.do(t, http.MethodPatch, base+"/"+task.ID, map[string]any{"deadline": nil}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[store.Task](t, rec).Deadline)

	rec = env.do(t, http.MethodPatch, base+"/"+task.ID, map[string]any{"deadline": "tomorrow"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, base+"/"+uuid.NewString(), map[string]any{"completed": true}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanMission(t *testing.T) {
	const prompt = "Prepare a ten minute talk on solar power"

	t.Run("suggestions", func(t *testing.T) {
		env := setupTestServer(t, planner.GeneratorFunc(func(context.Context, string) (string, error) {
			return "```json\n[{\"title\":\"A\",\"description\":\"B\",\"points\":10}]\n```", nil
		}))
		_, token := env.user(t, "ada")

		for _, path := range []string{"/ai/plan-mission", "/missions/plan-with-ai"} {
			rec := env.do(t, http.MethodPost, path, PlanRequest{Prompt: prompt}, token)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, []planner.TaskSuggestion{{Title: "A", Description: "B", Points: 10}},
				decode[[]planner.TaskSuggestion](t, rec))
		}

		rec := env.do(t, http.MethodGet, "/metrics", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `questd_planner_requests_total{outcome="ok"} 2`)
	})

	t.Run("short prompt", func(t *testing.T) {
		env := setupTestServer(t, nil)
		_, token := env.user(t, "ada")
		rec := env.do(t, http.MethodPost, "/ai/plan-mission", PlanRequest{Prompt: "short"}, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("misconfigured", func(t *testing.T) {
		env := setupTestServer(t, nil)
		_, token := env.user(t, "ada")
		rec := env.do(t, http.MethodPost, "/ai/plan-mission", PlanRequest{Prompt: prompt}, token)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, message(t, rec), "not configured")
	})

	t.Run("upstream failure", func(t *testing.T) {
		env := setupTestServer(t, planner.GeneratorFunc(func(context.Context, string) (string, error) {
			return "", errors.New("quota exceeded for key AIza-secret")
		}))
		_, token := env.user(t, "ada")
		rec := env.do(t, http.MethodPost, "/ai/plan-mission", PlanRequest{Prompt: prompt}, token)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, msgUnavailable, message(t, rec))
		assert.NotContains(t, rec.Body.String(), "AIza")
	})
}

func TestCreateMissionWithTasks(t *testing.T) {
	env := setupTestServer(t, nil)
	ada, token := env.user(t, "ada")

	rec := env.do(t, http.MethodPost, "/missions/with-tasks", CreateMissionWithTasksRequest{
		CreateMissionRequest: CreateMissionRequest{Name: "Talk", CreatedByID: ada.ID},
		Tasks: []planner.TaskSuggestion{
			{Title: "Outline", Description: "Plan", Points: 40},
			{Title: "Slides", Description: "Build", Points: 70},
		},
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decode[store.Mission](t, rec)
	require.Len(t, m.Tasks, 2)
	assert.Equal(t, "Outline", m.Tasks[0].Title)
	assert.Equal(t, []string{m.ID}, env.events.missions)

	rec = env.do(t, http.MethodPost, "/missions/with-tasks", CreateMissionWithTasksRequest{
		CreateMissionRequest: CreateMissionRequest{Name: "Empty"},
	}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{apiv1.ErrInvalidArgument, http.StatusBadRequest},
		{apiv1.ErrNotFound, http.StatusNotFound},
		{apiv1.ErrConflict, http.StatusBadRequest},
		{apiv1.ErrUnauthorized, http.StatusUnauthorized},
		{apiv1.ErrServiceMisconfigured, http.StatusInternalServerError},
		{apiv1.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		he := httpError(tt.err)
		assert.Equal(t, tt.code, he.Code, tt.err.Error())
	}

	he := httpError(errors.New("disk on fire"))
	assert.Equal(t, msgInternal, he.Message)
	assert.Equal(t, "mission m-1", detail(fmt.Errorf("%w: mission m-1", apiv1.ErrNotFound), apiv1.ErrNotFound))
	assert.Equal(t, "bare", detail(errors.New("bare"), apiv1.ErrNotFound))
}
