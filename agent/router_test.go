package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopHandler(ctx context.Context, params map[string]any) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, name := range []string{"search.find", "search.latest_from", "search.summarize"} {
		require.NoError(t, r.Register(Agent{Name: name, Description: name, Handler: nopHandler}))
	}
	return r
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Agent{Name: "a", Handler: nopHandler}))

	got, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "a", got.Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Agent{Name: "a", Handler: nopHandler}))
	assert.Error(t, r.Register(Agent{Name: "a", Handler: nopHandler}))
}

func TestRegistryRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(Agent{Name: "", Handler: nopHandler}))
	assert.Error(t, r.Register(Agent{Name: "b"}))
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Agent{Name: "zeta", Handler: nopHandler}))
	require.NoError(t, r.Register(Agent{Name: "alpha", Handler: nopHandler}))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}

// ---------------------------------------------------------------------------
// Model output validation
// ---------------------------------------------------------------------------

func TestValidateRegisteredIntentOnly(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	intent := r.validate(map[string]any{
		"intent": "made.up", "confidence": 0.9,
	}, "query")
	assert.Equal(t, "", intent.Name)
}

func TestValidateClampsConfidence(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	intent := r.validate(map[string]any{"intent": "search.find", "confidence": 1.7}, "q")
	assert.Equal(t, 1.0, intent.Confidence)

	intent = r.validate(map[string]any{"intent": "search.find", "confidence": -0.5}, "q")
	assert.Equal(t, 0.0, intent.Confidence)
}

func TestValidateNormalizesParams(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	intent := r.validate(map[string]any{
		"intent":     "search.find",
		"confidence": 0.8,
		"lang":       "tr",
		"params": map[string]any{
			"sender":           "HMRC",
			"domain":           "@Gov.UK",
			"keywords":         []any{"vergi", "iade"},
			"limit":            float64(500),
			"date_window_days": float64(0),
		},
	}, "q")

	assert.Equal(t, "hmrc", intent.Params["sender"])
	assert.Equal(t, "gov.uk", intent.Params["domain"])
	assert.Equal(t, []string{"vergi", "iade"}, intent.Params["keywords"])
	assert.Equal(t, 200, intent.Params["limit"])
	assert.Equal(t, 1, intent.Params["date_window_days"])
	assert.Equal(t, "tr", intent.Params["lang"])
}

func TestValidateLimitClampPerIntent(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	// find pages like search; latest_from is a bounded point lookup.
	intent := r.validate(map[string]any{
		"intent": "search.find", "confidence": 0.8,
		"params": map[string]any{"limit": float64(120)},
	}, "q")
	assert.Equal(t, 120, intent.Params["limit"])

	intent = r.validate(map[string]any{
		"intent": "search.latest_from", "confidence": 0.8,
		"params": map[string]any{"limit": float64(120)},
	}, "q")
	assert.Equal(t, 50, intent.Params["limit"])
}

func TestValidateNormalizesListsAndRanges(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	intent := r.validate(map[string]any{
		"intent": "search.find", "confidence": 0.8,
		"params": map[string]any{
			"keywords":   []any{"Fatura", " ", "ÖDEME"},
			"tags":       []any{"Invoice", ""},
			"boost_tags": []any{"IMPORTANT"},
			"offset":     float64(-3),
			"decay_days": float64(90),
		},
	}, "q")

	assert.Equal(t, []string{"fatura", "ödeme"}, intent.Params["keywords"])
	assert.Equal(t, []string{"invoice"}, intent.Params["tags"])
	assert.Equal(t, []string{"important"}, intent.Params["boost_tags"])
	assert.Equal(t, 0, intent.Params["offset"])
	assert.Equal(t, 30, intent.Params["decay_days"])
}

func TestValidateLangFallsBackToScript(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	intent := r.validate(map[string]any{"intent": "search.find", "confidence": 0.8},
		"faturaları göster")
	assert.Equal(t, "tr", intent.Lang)
}

// ---------------------------------------------------------------------------
// Heuristic fallback routing
// ---------------------------------------------------------------------------

func TestFallbackLatestFromTurkish(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	intent := r.fallbackIntent("HMRC'den gelen en son email neydi?")
	assert.Equal(t, "search.latest_from", intent.Name)
	assert.Equal(t, "hmrc", intent.Params["sender"])
	assert.Equal(t, 1, intent.Params["limit"])
	assert.Equal(t, fallbackConfidence, intent.Confidence)
}

func TestFallbackFindWithTopic(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	intent := r.fallbackIntent("amazon'dan gelen fatura emailleri")
	assert.Equal(t, "search.find", intent.Name)
	assert.Equal(t, "amazon", intent.Params["sender"])
	assert.Contains(t, intent.Params["keywords"], "fatura")
}

func TestFallbackLimitExtraction(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	intent := r.fallbackIntent("last 3 emails from github")
	assert.Equal(t, "search.latest_from", intent.Name)
	assert.Equal(t, "github", intent.Params["sender"])
	assert.Equal(t, 3, intent.Params["limit"])
}

func TestFallbackNoEmailCue(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")

	intent := r.fallbackIntent("what is the weather in Ankara")
	assert.Equal(t, "", intent.Name)
	assert.Equal(t, 0.0, intent.Confidence)
}

func TestRouteEmptyQuery(t *testing.T) {
	r := NewRouter(testRegistry(t), nil, "m")
	_, err := r.Route(context.Background(), "   ")
	assert.Error(t, err)
}
