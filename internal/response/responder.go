package response

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"bookshelf/internal/types"
)

type Responder struct {
	DebugMode bool
}

// RespondAndLogError will respond with generic error code (500) and log with slog.LevelError level
func (rr *Responder) RespondAndLogError(w http.ResponseWriter, ctx context.Context, err error) {
	errId := uuid.NewString()
	log(ctx, slog.LevelError, err.Error(), slog.String("err_id", errId))
	rr.renderError(w, http.StatusInternalServerError, err.Error(), errId)
}

func (rr *Responder) RespondAndLogCustom(w http.ResponseWriter, ctx context.Context, err error, lvl slog.Level, status int) {
	errId := uuid.NewString()
	log(ctx, lvl, err.Error(), slog.String("err_id", errId))
	rr.renderError(w, status, err.Error(), errId)
}

// RespondError picks status and log level from the catalog error kind.
// Client errors always show their message, server errors only in debug mode.
func (rr *Responder) RespondError(w http.ResponseWriter, ctx context.Context, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		rr.RespondAndLogCustom(w, ctx, err, slog.LevelDebug, http.StatusBadRequest)
	case errors.Is(err, types.ErrNotFound):
		rr.RespondAndLogCustom(w, ctx, err, slog.LevelDebug, http.StatusNotFound)
	case errors.Is(err, types.ErrMalformedPayload):
		rr.RespondAndLogCustom(w, ctx, err, slog.LevelWarn, http.StatusUnprocessableEntity)
	case errors.Is(err, types.ErrUpstream):
		rr.RespondAndLogCustom(w, ctx, err, slog.LevelWarn, http.StatusBadGateway)
	case errors.Is(err, context.DeadlineExceeded):
		rr.RespondAndLogCustom(w, ctx, err, slog.LevelWarn, http.StatusGatewayTimeout)
	default:
		rr.RespondAndLogError(w, ctx, err)
	}
}

func (rr *Responder) SendJson(w http.ResponseWriter, ctx context.Context, data any) {
	rr.SendJsonStatus(w, ctx, http.StatusOK, data)
}

func (rr *Responder) SendJsonStatus(w http.ResponseWriter, ctx context.Context, status int, data any) {
	bs, err := json.Marshal(data)
	if err != nil {
		rr.RespondAndLogError(w, ctx, err)
		return
	}

	write(w, status, bs)
}

type errorBody struct {
	Error string `json:"error"`
	ErrId string `json:"err_id"`
}

func (rr *Responder) renderError(w http.ResponseWriter, status int, message, errId string) {
	body := errorBody{ErrId: errId}

	if rr.DebugMode || status < http.StatusInternalServerError {
		body.Error = message
		if r, size := utf8.DecodeRuneInString(message); size > 0 {
			body.Error = string(unicode.ToUpper(r)) + message[size:]
		}
	} else {
		body.Error = "Unknown error occurred while processing your request. Error ID: " + errId
	}

	// a struct of two strings always marshals
	bs, _ := json.Marshal(body)

	w.Header().Set("X-Content-Type-Options", "nosniff")
	write(w, status, bs)
}

func write(w http.ResponseWriter, status int, bs []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.Copy(w, bytes.NewReader(bs))
}

// Needed because it skips one more frame item than the slog.Log
func log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	l := slog.Default()

	if !l.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	// skip [runtime.Callers, this function, this function's caller]
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.AddAttrs(attrs...)
	_ = l.Handler().Handle(ctx, r)
}
