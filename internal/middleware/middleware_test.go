package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hklaunchpad/site/internal/services/referral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// cookieNamed returns the last Set-Cookie for name, which is what the browser keeps
func cookieNamed(resp *http.Response, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func newTrackBackend(t *testing.T, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestReferral_TrackSetsCookies(t *testing.T) {
	srv, calls := newTrackBackend(t, http.StatusOK)
	mw := NewReferral(referral.NewHTTPReporter(srv.URL, time.Second), zap.NewNop(), true, false)

	var seen string
	handler := mw.Track(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracker := GetTracker(r)
		require.NotNil(t, tracker)
		seen, _ = tracker.GetReferralCode()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/faq?ref=HKP-ABCDEF", nil))
	resp := rec.Result()

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Equal(t, "HKP-ABCDEF", seen)

	durable := cookieNamed(resp, referral.StorageKey)
	require.NotNil(t, durable)
	assert.Equal(t, "HKP-ABCDEF", durable.Value)
	assert.True(t, durable.Secure)
	assert.Equal(t, http.SameSiteLaxMode, durable.SameSite)
	assert.Equal(t, int(referral.PersistentTTL/time.Second), durable.MaxAge)
}

func TestReferral_FailedReportClearsCookies(t *testing.T) {
	srv, _ := newTrackBackend(t, http.StatusInternalServerError)
	core, logs := observer.New(zap.ErrorLevel)
	mw := NewReferral(referral.NewHTTPReporter(srv.URL, time.Second), zap.New(core), false, false)

	var found bool
	handler := mw.Track(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = GetTracker(r).GetReferralCode()
	}))

	req := httptest.NewRequest(http.MethodGet, "/?ref=HKP-ABCDEF", nil)
	req.AddCookie(&http.Cookie{Name: referral.StorageKey, Value: "HKP-111111"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// The raw ref parameter still resolves even though the report failed.
	assert.True(t, found)

	durable := cookieNamed(rec.Result(), referral.StorageKey)
	require.NotNil(t, durable)
	assert.Empty(t, durable.Value)
	assert.Less(t, durable.MaxAge, 0)
	assert.Equal(t, 1, logs.FilterMessage("referral tracking failed").Len())
}

func TestReferral_SkipsNonNavigation(t *testing.T) {
	srv, calls := newTrackBackend(t, http.StatusOK)
	mw := NewReferral(referral.NewHTTPReporter(srv.URL, time.Second), zap.NewNop(), false, false)

	var code string
	handler := mw.Track(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code, _ = GetTracker(r).GetReferralCode()
	}))

	req := httptest.NewRequest(http.MethodPost, "/book?ref=HKP-ABCDEF", nil)
	req.AddCookie(&http.Cookie{Name: "session_" + referral.StorageKey, Value: "HKP-222222"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
	assert.Equal(t, "HKP-222222", code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "10.0.0.1", ClientIP(req, false))
	assert.Equal(t, "203.0.113.9", ClientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.1", ClientIP(req, true))
}

func TestClientIP_LoopbackPeerForwards(t *testing.T) {
	tests := []struct {
		remote string
		xff    string
		want   string
	}{
		{"127.0.0.1:40000", "203.0.113.1", "203.0.113.1"},
		{"[::1]:40000", "198.51.100.7, 127.0.0.1", "198.51.100.7"},
		{"127.0.0.1:40000", "", "127.0.0.1"},
		{"192.0.2.10:40000", "203.0.113.1", "192.0.2.10"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = tt.remote
		if tt.xff != "" {
			req.Header.Set("X-Forwarded-For", tt.xff)
		}
		assert.Equal(t, tt.want, ClientIP(req, false), tt.remote)
	}
}

func TestRecover(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	handler := Recover(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestLogger_RecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/map", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusTeapot), entries[0].ContextMap()["status"])
	assert.Equal(t, "/map", entries[0].ContextMap()["path"])
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestReferral_SlowBackendBoundedByTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	mw := NewReferral(referral.NewHTTPReporter(srv.URL, 50*time.Millisecond), zap.NewNop(), false, false)
	handler := mw.Track(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	start := time.Now()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?ref=HKP-ABCDEF", nil))

	assert.Less(t, time.Since(start), time.Second)
	durable := cookieNamed(rec.Result(), referral.StorageKey)
	require.NotNil(t, durable)
	assert.Less(t, durable.MaxAge, 0, "timed out report rolls back")
}
