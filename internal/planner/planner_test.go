package planner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/events"
	"github.com/fyrsmithlabs/questd/internal/store"
	"github.com/fyrsmithlabs/questd/internal/telemetry"
	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/fyrsmithlabs/questd/pkg/auth"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const goal = "Prepare a science fair volcano"

func testConfig() config.PlannerConfig {
	return config.Default().Planner
}

// stubGenerator returns a canned reply and remembers the last prompt.
type stubGenerator struct {
	mu     sync.Mutex
	reply  string
	err    error
	prompt string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompt = prompt
	return g.reply, g.err
}

// recordingPublisher captures published missions.
type recordingPublisher struct {
	events.Nop
	missions []*store.Mission
	err      error
}

func (r *recordingPublisher) MissionCreated(_ context.Context, m *store.Mission) error {
	r.missions = append(r.missions, m)
	return r.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    config.Secret("file:" + filepath.Join(t.TempDir(), "planner.db")),
	}, store.WithPasswordHasher(auth.NewPasswordHasher(bcrypt.MinCost)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func mustUser(t *testing.T, s *store.Store) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), store.NewUser{
		Email: "ada@example.com", Username: "ada", Password: "analytical",
	})
	require.NoError(t, err)
	return u
}

func TestGenerate_PromptLength(t *testing.T) {
	gen := &stubGenerator{reply: "[]"}
	p := New(testConfig(), gen, nil)

	for _, prompt := range []string{"", "short", "  nine char ", "123456789"} {
		_, err := p.Generate(context.Background(), prompt)
		assert.ErrorIs(t, err, apiv1.ErrInvalidArgument, "prompt %q", prompt)
	}

	cfg := testConfig()
	cfg.MaxPromptLength = 20
	p = New(cfg, gen, nil)
	_, err := p.Generate(context.Background(), strings.Repeat("x", 21))
	assert.ErrorIs(t, err, apiv1.ErrInvalidArgument)

	_, err = p.Generate(context.Background(), "ten chars!")
	assert.NoError(t, err)
}

func TestGenerate_FencedJSON(t *testing.T) {
	gen := &stubGenerator{reply: "```json\n[{\"title\":\"A\",\"description\":\"B\",\"points\":10}]\n```"}
	p := New(testConfig(), gen, nil)

	got, err := p.Generate(context.Background(), goal)
	require.NoError(t, err)
	assert.Equal(t, []TaskSuggestion{{Title: "A", Description: "B", Points: 10}}, got)

	assert.True(t, strings.HasSuffix(gen.prompt, "\nUser's Request: \""+goal+"\"\nYour Output:"))
	assert.Contains(t, gen.prompt, "between 10 and 100")
}

func TestGenerate_NotJSONIsEmpty(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := New(testConfig(), &stubGenerator{reply: "not json at all"}, nil, WithMetrics(metrics))

	got, err := p.Generate(context.Background(), goal)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(OutcomeEmpty)))
}

func TestGenerate_DropsInvalidElements(t *testing.T) {
	reply := `[
		{"title":"Outline","description":"Sketch the talk","points":40},
		{"title":"","description":"no title","points":10},
		{"title":"Zero","description":"zero points","points":0},
		{"title":"Str","description":"string points","points":"50"},
		{"title":"Frac","description":"fractional","points":12.5},
		"not an object",
		{"title":"Rehearse","description":"Practice aloud","points":70}
	]`
	metrics := NewMetrics(nil)
	p := New(testConfig(), &stubGenerator{reply: reply}, nil, WithMetrics(metrics))

	got, err := p.Generate(context.Background(), goal)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Outline", got[0].Title)
	assert.Equal(t, "Rehearse", got[1].Title)
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.Dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(OutcomeOK)))
}

func TestGenerate_Misconfigured(t *testing.T) {
	p := New(testConfig(), nil, nil)
	assert.False(t, p.Configured())

	_, err := p.Generate(context.Background(), goal)
	assert.ErrorIs(t, err, apiv1.ErrServiceMisconfigured)

	// Length is checked first.
	_, err = p.Generate(context.Background(), "short")
	assert.ErrorIs(t, err, apiv1.ErrInvalidArgument)
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	gen := &stubGenerator{err: errors.New("connection refused")}
	p := New(testConfig(), gen, nil, WithTracer(tel.Tracer("questd.planner")))

	_, err := p.Generate(context.Background(), goal)
	assert.ErrorIs(t, err, apiv1.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	tel.AssertSpanExists(t, "planner.generate")
}

func TestGenerate_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	gen := GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := New(cfg, gen, nil)

	_, err := p.Generate(context.Background(), goal)
	assert.ErrorIs(t, err, apiv1.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "timed out")
}

func TestGenerate_RecordsSpan(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	gen := &stubGenerator{reply: `[{"title":"A","description":"B","points":10},{"title":"","description":"","points":1}]`}
	p := New(testConfig(), gen, nil, WithTracer(tel.Tracer("questd.planner")))

	_, err := p.Generate(context.Background(), goal)
	require.NoError(t, err)
	tel.AssertSpanAttribute(t, "planner.generate", "planner.suggestions", int64(1))
	tel.AssertSpanAttribute(t, "planner.generate", "planner.dropped", int64(1))
	tel.AssertSpanAttribute(t, "planner.generate", "planner.provider", config.ProviderGemini)
}

func TestCommitAsMission(t *testing.T) {
	s := newTestStore(t)
	u := mustUser(t, s)
	pub := &recordingPublisher{}
	p := New(testConfig(), nil, s, WithPublisher(pub))
	ctx := context.Background()

	suggestions := []TaskSuggestion{
		{Title: "Research", Description: "Read about volcanoes", Points: 40},
		{Title: "Build", Description: "Make the model", Points: 80},
		{Title: "Present", Description: "Show the class", Points: 30},
	}
	m, err := p.CommitAsMission(ctx, u.ID, "Volcano", "Science fair", suggestions)
	require.NoError(t, err)
	require.Len(t, m.Tasks, 3)
	for i, task := range m.Tasks {
		assert.Equal(t, m.ID, task.MissionID)
		assert.Equal(t, suggestions[i].Title, task.Title)
		assert.Equal(t, suggestions[i].Points, task.Points)
	}

	missions, err := s.ListMissions(ctx)
	require.NoError(t, err)
	assert.Len(t, missions, 1)
	tasks, err := s.ListTasks(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	require.Len(t, pub.missions, 1)
	assert.Equal(t, m.ID, pub.missions[0].ID)
}

func TestCommitAsMission_Invalid(t *testing.T) {
	s := newTestStore(t)
	u := mustUser(t, s)
	pub := &recordingPublisher{}
	p := New(testConfig(), nil, s, WithPublisher(pub))
	ctx := context.Background()

	_, err := p.CommitAsMission(ctx, u.ID, "Empty", "", nil)
	assert.ErrorIs(t, err, apiv1.ErrInvalidArgument)

	_, err = p.CommitAsMission(ctx, u.ID, "Bad", "", []TaskSuggestion{
		{Title: "Ok", Description: "fine", Points: 10},
		{Title: "Zero", Description: "no points", Points: 0},
	})
	assert.ErrorIs(t, err, apiv1.ErrInvalidArgument)

	_, err = p.CommitAsMission(ctx, "missing-user", "Orphan", "", []TaskSuggestion{
		{Title: "Ok", Description: "fine", Points: 10},
	})
	assert.ErrorIs(t, err, apiv1.ErrNotFound)

	missions, err := s.ListMissions(ctx)
	require.NoError(t, err)
	assert.Empty(t, missions)
	assert.Empty(t, pub.missions)
}

func TestCommitAsMission_PublishFailureKeepsMission(t *testing.T) {
	s := newTestStore(t)
	u := mustUser(t, s)
	p := New(testConfig(), nil, s, WithPublisher(&recordingPublisher{err: errors.New("nats down")}))

	m, err := p.CommitAsMission(context.Background(), u.ID, "Volcano", "", []TaskSuggestion{
		{Title: "Research", Description: "Read", Points: 40},
	})
	require.NoError(t, err)
	_, err = s.GetMission(context.Background(), m.ID)
	assert.NoError(t, err)
}

func TestNewGenerator_NoCredential(t *testing.T) {
	cfg := testConfig()
	gen, err := NewGenerator(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, gen)

	cfg.Provider = config.ProviderOpenAI
	gen, err = NewGenerator(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, gen)

	cfg.Provider = "bard"
	_, err = NewGenerator(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewGenerator_OpenAICompatible(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = config.ProviderOpenAI
	cfg.BaseURL = "http://127.0.0.1:1/v1"

	gen, err := NewGenerator(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, gen)
}
