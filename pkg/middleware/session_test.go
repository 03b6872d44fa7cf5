package middleware_test

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"sessionstore/pkg/middleware"
	"sessionstore/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const existingID = "0123456789abcdef0123456789abcdef01234567"

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(id string) (session.Data, bool, error) {
	args := m.Called(id)
	if d := args.Get(0); d != nil {
		return d.(session.Data), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *mockStore) Save(id string, data session.Data) error {
	return m.Called(id, data).Error(0)
}

func (m *mockStore) Delete(id string) error {
	return m.Called(id).Error(0)
}

func (m *mockStore) DeleteExpired(now int64) error {
	return m.Called(now).Error(0)
}

var fixedNow = time.Unix(1700000000, 0)

func newTestMiddleware(store session.Store) func(http.Handler) http.Handler {
	return middleware.Session(store, middleware.SessionOptions{
		TTL:    time.Hour,
		Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
		Now:    func() time.Time { return fixedNow },
	})
}

func serve(store session.Store, cookie string, h http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.DefaultCookieName, Value: cookie})
	}
	rr := httptest.NewRecorder()
	newTestMiddleware(store)(h).ServeHTTP(rr, req)
	return rr
}

func findCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.DefaultCookieName {
			return c
		}
	}
	return nil
}

func TestSession_AnonymousUntouched(t *testing.T) {
	store := new(mockStore)

	rr := serve(store, "", func(w http.ResponseWriter, r *http.Request) {
		st, ok := middleware.FromContext(r.Context())
		require.True(t, ok)
		assert.True(t, st.IsNew())
		w.Write([]byte("ok"))
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, findCookie(rr))
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSession_NewSessionSaved(t *testing.T) {
	store := new(mockStore)
	wantExpires := fixedNow.Add(time.Hour).Unix()
	store.On("Save", mock.AnythingOfType("string"), mock.MatchedBy(func(d session.Data) bool {
		return d["user"] == "alice" && d[session.ExpiresKey] == wantExpires
	})).Return(nil)

	rr := serve(store, "", func(w http.ResponseWriter, r *http.Request) {
		st, _ := middleware.FromContext(r.Context())
		st.Set("user", "alice")
		w.WriteHeader(http.StatusCreated)
	})

	assert.Equal(t, http.StatusCreated, rr.Code)
	c := findCookie(rr)
	require.NotNil(t, c)
	assert.Len(t, c.Value, 40)
	assert.True(t, c.HttpOnly)
	store.AssertExpectations(t)
}

func TestSession_ExistingSessionRefreshed(t *testing.T) {
	store := new(mockStore)
	stored := session.Data{"user": "bob", session.ExpiresKey: fixedNow.Unix() + 10}
	store.On("Load", existingID).Return(stored, true, nil)
	store.On("Save", existingID, mock.MatchedBy(func(d session.Data) bool {
		return d[session.ExpiresKey] == fixedNow.Add(time.Hour).Unix()
	})).Return(nil)

	rr := serve(store, existingID, func(w http.ResponseWriter, r *http.Request) {
		st, _ := middleware.FromContext(r.Context())
		assert.False(t, st.IsNew())
		v, ok := st.Get("user")
		assert.True(t, ok)
		assert.Equal(t, "bob", v)
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	c := findCookie(rr)
	require.NotNil(t, c)
	assert.Equal(t, existingID, c.Value)
	store.AssertExpectations(t)
}

func TestSession_ExpiredSessionReplaced(t *testing.T) {
	store := new(mockStore)
	store.On("Load", existingID).Return(session.Data{session.ExpiresKey: fixedNow.Unix() - 1}, true, nil)
	store.On("Delete", existingID).Return(nil)

	rr := serve(store, existingID, func(w http.ResponseWriter, r *http.Request) {
		st, _ := middleware.FromContext(r.Context())
		assert.True(t, st.IsNew())
		assert.NotEqual(t, existingID, st.ID)
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	store.AssertExpectations(t)
}

func TestSession_UnknownCookieIgnored(t *testing.T) {
	store := new(mockStore)

	rr := serve(store, "not-a-session-id", func(w http.ResponseWriter, r *http.Request) {
		st, _ := middleware.FromContext(r.Context())
		assert.True(t, st.IsNew())
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	store.AssertNotCalled(t, "Load", mock.Anything)
}

func TestSession_LoadError(t *testing.T) {
	store := new(mockStore)
	store.On("Load", existingID).Return(nil, false, &session.StoreError{Op: "load", ID: existingID, Err: errors.New("db down")})

	called := false
	rr := serve(store, existingID, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "session unavailable")
}

func TestSession_SaveError(t *testing.T) {
	store := new(mockStore)
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

	rr := serve(store, "", func(w http.ResponseWriter, r *http.Request) {
		st, _ := middleware.FromContext(r.Context())
		st.Set("k", "v")
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Nil(t, findCookie(rr))
}

func TestSession_Destroy(t *testing.T) {
	store := new(mockStore)
	store.On("Load", existingID).Return(session.Data{"user": "bob"}, true, nil)
	store.On("Delete", existingID).Return(nil)

	rr := serve(store, existingID, func(w http.ResponseWriter, r *http.Request) {
		st, _ := middleware.FromContext(r.Context())
		st.Destroy()
		w.WriteHeader(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, rr.Code)
	c := findCookie(rr)
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
	h := middleware.Panic(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
