// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"net/http"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
	corsMaxAge      = 10 * time.Minute
)

type contextKey struct{}

var validRequestID = regexp.MustCompile(`^[a-zA-Z0-9\-_]{1,128}$`)

// RequestID tags the request with the caller's X-Request-ID, or a fresh UUID
// when it is missing or malformed, and attaches a logger carrying it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		l := getLog().With().Str("request_id", id).Logger()
		ctx := l.WithContext(context.WithValue(r.Context(), contextKey{}, id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID set by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// requestLog returns the logger RequestID attached, falling back to the
// package logger.
func requestLog(ctx context.Context) *zerolog.Logger {
	if GetRequestID(ctx) == "" {
		return getLog()
	}
	return zerolog.Ctx(ctx)
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Recovery turns a handler panic into a 500 that carries the request ID.
// A panicking view has already hijacked its connection and gets no body.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			requestLog(r.Context()).Error().
				Interface("panic", rec).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("Handler panicked")
			if isUpgrade(r) {
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "internal server error",
				Context: GetRequestID(r.Context()),
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// Logger writes one line per request, tagged with the agent and task of the
// route. A view is logged when its socket closes, with a 101 status and the
// time it stayed open.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		msg := "HTTP request"
		switch {
		case status == 0 && isUpgrade(r):
			status = http.StatusSwitchingProtocols
			msg = "View closed"
		case status == 0:
			status = http.StatusOK
		}

		l := requestLog(r.Context())
		var ev *zerolog.Event
		switch {
		case r.URL.Path == "/healthz":
			ev = l.Debug()
		case status >= http.StatusInternalServerError:
			ev = l.Error()
		case status >= http.StatusBadRequest:
			ev = l.Warn()
		default:
			ev = l.Info()
		}

		if rc := chi.RouteContext(r.Context()); rc != nil {
			if agentID := rc.URLParam("agentId"); agentID != "" {
				ev = ev.Str("agent_id", agentID)
			}
			if taskID := rc.URLParam("taskId"); taskID != "" {
				ev = ev.Str("task_id", taskID)
			}
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg(msg)
	})
}

// corsPolicy admits browser callers from a fixed set of origins. An empty
// set admits any origin.
type corsPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newCORSPolicy(allowed []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{}, len(allowed))}
	for _, o := range allowed {
		if o == "*" {
			p.any = true
		}
		p.origins[o] = struct{}{}
	}
	p.any = p.any || len(allowed) == 0
	return p
}

func (p corsPolicy) admits(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func (p corsPolicy) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && p.admits(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
			h.Set("Access-Control-Expose-Headers", requestIDHeader)
			h.Set("Access-Control-Max-Age", strconv.Itoa(int(corsMaxAge.Seconds())))
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORS applies the origin policy of the view host. Preflights are answered
// here and never reach a route.
func CORS(allowed []string) func(http.Handler) http.Handler {
	return newCORSPolicy(allowed).handler
}
