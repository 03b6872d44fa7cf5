package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"sessionstore/pkg/middleware"
	"sessionstore/pkg/session"

	"github.com/gorilla/mux"
)

const muxVarKey string = "key"

type SessionView struct {
	ID      string         `json:"id"`
	New     bool           `json:"new"`
	Expires int64          `json:"expires,omitempty"`
	Data    map[string]any `json:"data"`
}

type SessionHandler struct {
	Logger *slog.Logger
}

func NewSessionHandler(logger *slog.Logger) *SessionHandler {
	return &SessionHandler{Logger: logger}
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := getState(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, view(st))
}

func (h *SessionHandler) SetValue(w http.ResponseWriter, r *http.Request) {
	st, ok := getState(w, r)
	if !ok {
		return
	}

	key := mux.Vars(r)[muxVarKey]
	if key == "" || key == session.ExpiresKey {
		writeError(w, http.StatusBadRequest, typeMessage, "invalid key")
		return
	}

	var value any
	if ok := DecodeJSONBody(w, r, &value); !ok {
		return
	}

	st.Set(key, value)
	if ok := writeJSON(w, h.Logger, http.StatusOK, view(st)); ok {
		h.Logger.Info("session value set", "key", key)
	}
}

func (h *SessionHandler) RemoveValue(w http.ResponseWriter, r *http.Request) {
	st, ok := getState(w, r)
	if !ok {
		return
	}

	key := mux.Vars(r)[muxVarKey]
	if key == "" || key == session.ExpiresKey {
		writeError(w, http.StatusBadRequest, typeMessage, "invalid key")
		return
	}

	st.Remove(key)
	writeJSON(w, h.Logger, http.StatusOK, view(st))
}

func (h *SessionHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	st, ok := getState(w, r)
	if !ok {
		return
	}

	st.Destroy()
	if ok := writeJSON(w, h.Logger, http.StatusOK, map[string]string{typeMessage: "success"}); ok {
		h.Logger.Info("session destroyed")
	}
}

// SweepHandler lets an external scheduler trigger the expiry sweep.
type SweepHandler struct {
	Store  session.Store
	Logger *slog.Logger
	Now    func() time.Time
}

func NewSweepHandler(store session.Store, logger *slog.Logger) *SweepHandler {
	return &SweepHandler{Store: store, Logger: logger, Now: time.Now}
}

func (h *SweepHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	now := h.Now().Unix()
	if err := h.Store.DeleteExpired(now); err != nil {
		h.Logger.Error("sweep", "error", err)
		writeError(w, http.StatusInternalServerError, typeError, "sweep failed")
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, map[string]int64{"swept_before": now})
}

func getState(w http.ResponseWriter, r *http.Request) (*middleware.State, bool) {
	st, ok := middleware.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, typeMessage, "no session")
		return nil, false
	}
	return st, true
}

func view(st *middleware.State) SessionView {
	v := SessionView{ID: st.ID, New: st.IsNew(), Data: make(map[string]any, len(st.Data))}
	for k, val := range st.Data {
		if k == session.ExpiresKey {
			continue
		}
		v.Data[k] = val
	}
	v.Expires, _ = st.Data.Expires()
	return v
}
