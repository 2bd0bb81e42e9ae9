package rtdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		_, err := NewClient(u, nil, nil)
		assert.Error(t, err, "url %q", u)
	}
}

func TestPutBool(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.URL.Query().Get("auth")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte("true"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", staticToken("tok-123"), srv.Client())
	require.NoError(t, err)

	require.NoError(t, c.PutBool(context.Background(), "/frets/0", true))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/frets/0.json", gotPath)
	assert.Equal(t, "tok-123", gotAuth)
	assert.Equal(t, "true", gotBody)

	require.NoError(t, c.PutBool(context.Background(), "/frets/3", false))
	assert.Equal(t, "/frets/3.json", gotPath)
	assert.Equal(t, "false", gotBody)
}

func TestPutBoolWithoutToken(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, staticToken(""), srv.Client())
	require.NoError(t, err)
	require.NoError(t, c.PutBool(context.Background(), "/frets/0", true))
	assert.Empty(t, rawQuery)
}

func TestPutBoolErrorReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error" : "Permission denied"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil, srv.Client())
	require.NoError(t, err)

	err = c.PutBool(context.Background(), "/frets/0", true)
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, http.StatusUnauthorized, we.StatusCode)
	assert.Equal(t, "Permission denied", we.Reason)
	assert.Equal(t, "rtdb: put /frets/0: 401 Permission denied", err.Error())
}

func TestPutBoolPlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil, srv.Client())
	require.NoError(t, err)

	err = c.PutBool(context.Background(), "/frets/0", true)
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "upstream unavailable", we.Reason)
}

func TestPutBoolTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, nil, nil)
	require.NoError(t, err)
	assert.Error(t, c.PutBool(context.Background(), "/frets/0", true))
}

// identityServer fakes the sign-up and refresh endpoints.
func identityServer(t *testing.T, signUps, refreshes *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/signup", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.URL.Query().Get("key"))
		n := signUps.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"idToken":"id-` + string(rune('0'+n)) + `","refreshToken":"rt-1","expiresIn":"3600"}`))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		if r.PostForm.Get("refresh_token") != "rt-1" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":400,"message":"INVALID_REFRESH_TOKEN"}}`))
			return
		}
		refreshes.Add(1)
		w.Write([]byte(`{"id_token":"id-refreshed","refresh_token":"rt-1","expires_in":"3600"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSessionWithoutAPIKeyAlwaysReady(t *testing.T) {
	s := NewSession(SessionOptions{}, nil)
	assert.True(t, s.Ready())
	assert.Empty(t, s.Token())
}

func TestSessionSignUpAndRefresh(t *testing.T) {
	var signUps, refreshes atomic.Int32
	srv := identityServer(t, &signUps, &refreshes)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession(SessionOptions{
		APIKey:     "key-1",
		SignUpURL:  srv.URL + "/signup",
		RefreshURL: srv.URL + "/token",
		HTTPClient: srv.Client(),
		Now:        func() time.Time { return now },
	}, nil)

	assert.False(t, s.Ready(), "not ready before sign-up")

	require.NoError(t, s.SignUp(context.Background()))
	assert.True(t, s.Ready())
	assert.Equal(t, "id-1", s.Token())
	assert.Equal(t, now.Add(time.Hour), s.Expiry())
	assert.Equal(t, 55*time.Minute, s.nextWait())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, "id-refreshed", s.Token())
	assert.EqualValues(t, 1, refreshes.Load())

	now = now.Add(2 * time.Hour)
	assert.False(t, s.Ready(), "expired token is not ready")
	assert.Equal(t, retryInterval, s.nextWait())
}

func TestSessionSignUpError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"ADMIN_ONLY_OPERATION"}}`))
	}))
	defer srv.Close()

	s := NewSession(SessionOptions{APIKey: "k", SignUpURL: srv.URL, HTTPClient: srv.Client()}, nil)
	err := s.SignUp(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_ONLY_OPERATION")
	assert.False(t, s.Ready())
}

func TestSessionRefreshWithoutToken(t *testing.T) {
	s := NewSession(SessionOptions{APIKey: "k"}, nil)
	assert.Error(t, s.Refresh(context.Background()))
}

func TestSessionRunSignsIn(t *testing.T) {
	var signUps, refreshes atomic.Int32
	srv := identityServer(t, &signUps, &refreshes)

	s := NewSession(SessionOptions{
		APIKey:     "key-1",
		SignUpURL:  srv.URL + "/signup",
		RefreshURL: srv.URL + "/token",
		HTTPClient: srv.Client(),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, s.Ready, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, signUps.Load())
}

func TestSessionAsTokenSource(t *testing.T) {
	var signUps, refreshes atomic.Int32
	idp := identityServer(t, &signUps, &refreshes)

	var gotAuth string
	db := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.URL.Query().Get("auth")
	}))
	defer db.Close()

	s := NewSession(SessionOptions{APIKey: "key-1", SignUpURL: idp.URL + "/signup", HTTPClient: idp.Client()}, nil)
	require.NoError(t, s.SignUp(context.Background()))

	c, err := NewClient(db.URL, s, db.Client())
	require.NoError(t, err)
	require.NoError(t, c.PutBool(context.Background(), "/frets/0", true))
	assert.Equal(t, "id-1", gotAuth)
}
