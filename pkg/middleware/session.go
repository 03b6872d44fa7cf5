package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sessionstore/pkg/generator"
	"sessionstore/pkg/session"

	"github.com/google/uuid"
)

type contextKey string

const (
	StateContextKey   contextKey = "session"
	DefaultCookieName string     = "sid"
)

// State is the session of the current request.
type State struct {
	ID   string
	Data session.Data

	fresh     bool
	modified  bool
	destroyed bool
}

func (s *State) Get(key string) (any, bool) {
	v, ok := s.Data[key]
	return v, ok
}

func (s *State) Set(key string, value any) {
	s.Data[key] = value
	s.modified = true
}

func (s *State) Remove(key string) {
	if _, ok := s.Data[key]; ok {
		delete(s.Data, key)
		s.modified = true
	}
}

// Destroy deletes the stored session and clears the cookie once the
// response is written.
func (s *State) Destroy() {
	s.destroyed = true
}

func (s *State) IsNew() bool { return s.fresh }

func FromContext(ctx context.Context) (*State, bool) {
	st, ok := ctx.Value(StateContextKey).(*State)
	return st, ok && st != nil
}

type SessionOptions struct {
	TTL        time.Duration
	CookieName string
	Secure     bool
	Logger     *slog.Logger
	Now        func() time.Time
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.TTL <= 0 {
		o.TTL = time.Hour
	}
	if o.CookieName == "" {
		o.CookieName = DefaultCookieName
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Session loads the session named by the cookie before the handler runs and
// persists it right before the response headers are sent. Anonymous
// requests that never touch their session leave no row behind.
func Session(store session.Store, opts SessionOptions) func(http.Handler) http.Handler {
	opts = opts.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := opts.Logger.With("request_id", uuid.NewString())

			state, err := loadState(store, r, opts)
			if err != nil {
				logger.Error("session load", "error", err)
				http.Error(w, `{"message":"session unavailable"}`, http.StatusInternalServerError)
				return
			}

			sw := &sessionWriter{ResponseWriter: w}
			sw.commit = func() int {
				return commitState(store, w, state, opts, logger)
			}

			ctx := context.WithValue(r.Context(), StateContextKey, state)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if !sw.committed {
				sw.WriteHeader(http.StatusOK)
			}
		})
	}
}

func loadState(store session.Store, r *http.Request, opts SessionOptions) (*State, error) {
	if c, err := r.Cookie(opts.CookieName); err == nil && generator.ValidSessionID(c.Value) {
		data, ok, err := store.Load(c.Value)
		if err != nil {
			return nil, err
		}
		if ok {
			exp, has := data.Expires()
			if !has || exp >= opts.Now().Unix() {
				return &State{ID: c.Value, Data: data}, nil
			}
			if err := store.Delete(c.Value); err != nil {
				return nil, err
			}
		}
	}

	id, err := generator.GenerateSessionID()
	if err != nil {
		return nil, err
	}
	return &State{ID: id, Data: session.Data{}, fresh: true}, nil
}

// commitState returns a status code overriding the handler's one, or 0.
func commitState(store session.Store, w http.ResponseWriter, st *State, opts SessionOptions, logger *slog.Logger) int {
	cookie := &http.Cookie{
		Name:     opts.CookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	if st.destroyed {
		if !st.fresh {
			if err := store.Delete(st.ID); err != nil {
				logger.Error("session delete", "error", err)
				return http.StatusInternalServerError
			}
		}
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
		return 0
	}

	if st.fresh && !st.modified {
		return 0
	}

	expires := opts.Now().Add(opts.TTL)
	st.Data.SetExpires(expires)
	if err := store.Save(st.ID, st.Data); err != nil {
		logger.Error("session save", "error", err)
		return http.StatusInternalServerError
	}

	cookie.Value = st.ID
	cookie.Expires = expires
	http.SetCookie(w, cookie)
	return 0
}

type sessionWriter struct {
	http.ResponseWriter
	commit    func() int
	committed bool
}

func (w *sessionWriter) WriteHeader(code int) {
	if !w.committed {
		w.committed = true
		if override := w.commit(); override != 0 {
			code = override
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
