package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-brain/internal/entity"
	"github.com/rocketscienceinc/tictactoe-brain/internal/session"
)

// SessionRegistry is what the play endpoints need from a session registry.
type SessionRegistry interface {
	Create(ctx context.Context, id string) (*entity.Game, error)
	Move(ctx context.Context, id string, position int) (session.Result, error)
	Render(ctx context.Context, id string) (string, error)
}

type newRequest struct {
	ID string `json:"id"`
}

type moveRequest struct {
	ID       string `json:"id"`
	Position *int   `json:"position"`
}

type gameResponse struct {
	ID       string       `json:"id"`
	Board    entity.Board `json:"board"`
	Turn     entity.Mark  `json:"turn"`
	Winner   entity.Mark  `json:"winner"`
	Finished bool         `json:"finished"`
	BotCell  *int         `json:"bot_cell,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type playHandler struct {
	logger   *slog.Logger
	sessions SessionRegistry
}

func newPlayHandler(logger *slog.Logger, sessions SessionRegistry) *playHandler {
	return &playHandler{
		logger:   logger.With("handler", "play"),
		sessions: sessions,
	}
}

// New starts a session. The id is generated when the body does not carry one.
func (that *playHandler) New(w http.ResponseWriter, r *http.Request) {
	var req newRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	game, err := that.sessions.Create(r.Context(), req.ID)
	if err != nil {
		that.writeError(w, err)
		return
	}

	resp := gameResponse{
		ID:     game.ID,
		Board:  game.Board,
		Turn:   game.Turn(),
		Winner: game.Winner,
	}
	if game.LastCell >= 0 {
		resp.BotCell = &game.LastCell
	}

	that.writeJSON(w, http.StatusCreated, resp)
}

func (that *playHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" || req.Position == nil {
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id and position are required"})
		return
	}

	result, err := that.sessions.Move(r.Context(), req.ID, *req.Position)
	if err != nil {
		that.writeError(w, err)
		return
	}

	resp := gameResponse{
		ID:       result.Game.ID,
		Board:    result.Game.Board,
		Turn:     result.Game.Turn(),
		Winner:   result.Winner,
		Finished: result.Finished,
	}
	if result.BotCell >= 0 {
		resp.BotCell = &result.BotCell
	}

	that.writeJSON(w, http.StatusOK, resp)
}

// Render writes the board of a session as plain text.
func (that *playHandler) Render(w http.ResponseWriter, r *http.Request) {
	out, err := that.sessions.Render(r.Context(), r.PathValue("id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err = w.Write([]byte(out)); err != nil {
		that.logger.Error("failed to write board", "error", err)
	}
}

func (that *playHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrInvalidMove), errors.Is(err, apperror.ErrGameFinished):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnknownSession):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrGameAlreadyExists):
		status = http.StatusConflict
	default:
		that.logger.Error("request failed", "error", err)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal Server Error"
	}

	that.writeJSON(w, status, errorResponse{Error: msg})
}

func (that *playHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
