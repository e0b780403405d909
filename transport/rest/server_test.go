package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rocketscienceinc/tictactoe-brain/internal/brain"
	"github.com/rocketscienceinc/tictactoe-brain/internal/entity"
	"github.com/rocketscienceinc/tictactoe-brain/internal/metrics"
	"github.com/rocketscienceinc/tictactoe-brain/internal/policy"
	"github.com/rocketscienceinc/tictactoe-brain/internal/repository"
	"github.com/rocketscienceinc/tictactoe-brain/internal/selfplay"
	"github.com/rocketscienceinc/tictactoe-brain/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, options ...session.Option) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	sessionOptions := append([]session.Option{session.WithMetrics(metrics.New(reg))}, options...)
	sessions := session.New(logger, repository.NewMemoryGameRepository(), sessionOptions...)

	return New(logger, "0",
		WithSessions(sessions),
		WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return out
}

func TestPing(t *testing.T) {
	rec := do(t, newHandler(t), http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestPlayNew(t *testing.T) {
	t.Run("Generates an id when none is given", func(t *testing.T) {
		rec := do(t, newHandler(t), http.MethodPost, "/play/new", "")

		require.Equal(t, http.StatusCreated, rec.Code)
		body := decode(t, rec)
		_, err := uuid.Parse(body["id"].(string))
		assert.NoError(t, err)
		assert.Equal(t, "_________", body["board"])
		assert.Equal(t, "X", body["turn"])
	})

	t.Run("Uses the given id and rejects a duplicate", func(t *testing.T) {
		h := newHandler(t)

		rec := do(t, h, http.MethodPost, "/play/new", `{"id":"s1"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "s1", decode(t, rec)["id"])

		rec = do(t, h, http.MethodPost, "/play/new", `{"id":"s1"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Bad body", func(t *testing.T) {
		rec := do(t, newHandler(t), http.MethodPost, "/play/new", `{`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPlayMove(t *testing.T) {
	t.Run("Plays a game to the end", func(t *testing.T) {
		// Given: a new session
		h := newHandler(t)
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/play/new", `{"id":"s1"}`).Code)

		// When: X completes the top row
		var last *httptest.ResponseRecorder
		for _, cell := range []string{"0", "3", "1", "4", "2"} {
			last = do(t, h, http.MethodPost, "/play/move", `{"id":"s1","position":`+cell+`}`)
			require.Equal(t, http.StatusOK, last.Code, last.Body.String())
		}

		// Then: the game is reported won and the session is gone
		body := decode(t, last)
		assert.Equal(t, "XXXOO____", body["board"])
		assert.Equal(t, "X", body["winner"])
		assert.Equal(t, true, body["finished"])

		rec := do(t, h, http.MethodGet, "/play/s1", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Position zero is a valid move", func(t *testing.T) {
		h := newHandler(t)
		do(t, h, http.MethodPost, "/play/new", `{"id":"s1"}`)

		rec := do(t, h, http.MethodPost, "/play/move", `{"id":"s1","position":0}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "X________", decode(t, rec)["board"])
	})

	t.Run("Invalid move is a bad request", func(t *testing.T) {
		h := newHandler(t)
		do(t, h, http.MethodPost, "/play/new", `{"id":"s1"}`)
		do(t, h, http.MethodPost, "/play/move", `{"id":"s1","position":4}`)

		rec := do(t, h, http.MethodPost, "/play/move", `{"id":"s1","position":4}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["error"], "invalid move")
	})

	t.Run("Missing position is a bad request", func(t *testing.T) {
		rec := do(t, newHandler(t), http.MethodPost, "/play/move", `{"id":"s1"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unknown session", func(t *testing.T) {
		rec := do(t, newHandler(t), http.MethodPost, "/play/move", `{"id":"nope","position":1}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Bot answers in the response", func(t *testing.T) {
		h := newHandler(t,
			session.WithBot(brain.New(), entity.O, policy.NewScripted(8), selfplay.DefaultRewards(), false))
		do(t, h, http.MethodPost, "/play/new", `{"id":"s1"}`)

		rec := do(t, h, http.MethodPost, "/play/move", `{"id":"s1","position":0}`)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "X_______O", body["board"])
		assert.InDelta(t, 8, body["bot_cell"], 0)
	})
}

func TestPlayRender(t *testing.T) {
	h := newHandler(t)
	do(t, h, http.MethodPost, "/play/new", `{"id":"s1"}`)
	do(t, h, http.MethodPost, "/play/move", `{"id":"s1","position":4}`)

	rec := do(t, h, http.MethodGet, "/play/s1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "| 0 | 1 | 2 |\n| 3 | X | 5 |\n| 6 | 7 | 8 |\n", rec.Body.String())
}

func TestMetrics(t *testing.T) {
	h := newHandler(t)
	do(t, h, http.MethodPost, "/play/new", `{"id":"s1"}`)

	rec := do(t, h, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tictactoe_sessions_total{event="created"} 1`)
}
