package referral

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        string
}

// backend is an httptest server that records every report it receives
type backend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newBackend(t *testing.T, status int) *backend {
	t.Helper()
	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(body),
		})
		b.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) recorded() []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedRequest(nil), b.requests...)
}

type fakeReporter struct {
	mu    sync.Mutex
	calls []string
	err   error
	gate  chan struct{}
}

func (f *fakeReporter) Report(ctx context.Context, code string) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, code)
	return f.err
}

func (f *fakeReporter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func navigate(t *testing.T, tr *Tracker, params url.Values) {
	t.Helper()
	select {
	case <-tr.OnNavigationParamsChanged(context.Background(), params):
	case <-time.After(5 * time.Second):
		t.Fatal("tracking did not finish")
	}
}

func storedCodes(s Store) (session, persistent string) {
	session, _ = s.GetSession(StorageKey)
	persistent, _ = s.GetPersistent(StorageKey)
	return session, persistent
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate("HKP-1A2B3C"))
	assert.False(t, Validate("hkp-1a2b3c"), "matching is case-sensitive")
	assert.False(t, Validate("HKP-1A2B3"), "wrong length")
	assert.False(t, Validate(""))
}

func TestTracker_TrackSuccess(t *testing.T) {
	srv := newBackend(t, http.StatusOK)
	store := NewMemoryStore()
	tr := NewTracker(store, NewHTTPReporter(srv.URL, time.Second), zap.NewNop())

	before := testutil.ToFloat64(trackTotal.WithLabelValues(resultReported))
	navigate(t, tr, url.Values{"ref": {"HKP-ABCDEF"}})

	session, persistent := storedCodes(store)
	assert.Equal(t, "HKP-ABCDEF", session)
	assert.Equal(t, "HKP-ABCDEF", persistent)

	reqs := srv.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, TrackPath, reqs[0].Path)
	assert.Equal(t, "application/json", reqs[0].ContentType)
	assert.JSONEq(t, `{"referralCode":"HKP-ABCDEF"}`, reqs[0].Body)

	assert.Equal(t, before+1, testutil.ToFloat64(trackTotal.WithLabelValues(resultReported)))
}

func TestTracker_BackendFailureRollsBack(t *testing.T) {
	srv := newBackend(t, http.StatusInternalServerError)
	store := NewMemoryStore()
	require.NoError(t, store.SetSession(StorageKey, "HKP-999999"))
	require.NoError(t, store.SetPersistent(StorageKey, "HKP-999999", time.Hour))

	core, logs := observer.New(zap.ErrorLevel)
	tr := NewTracker(store, NewHTTPReporter(srv.URL, time.Second), zap.New(core))

	navigate(t, tr, url.Values{"ref": {"HKP-ABCDEF"}})

	_, ok := store.GetSession(StorageKey)
	assert.False(t, ok, "session store must be cleared")
	_, ok = store.GetPersistent(StorageKey)
	assert.False(t, ok, "persistent store must be cleared")

	assert.Len(t, srv.recorded(), 1, "no retry after failure")

	entries := logs.FilterMessage("referral tracking failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "HKP-ABCDEF", entries[0].ContextMap()["referral_code"])
}

func TestTracker_NetworkErrorRollsBack(t *testing.T) {
	srv := newBackend(t, http.StatusOK)
	srv.Close()

	store := NewMemoryStore()
	tr := NewTracker(store, NewHTTPReporter(srv.URL, time.Second), nil)

	err := tr.Track(context.Background(), "HKP-ABCDEF")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReportFailed))

	session, persistent := storedCodes(store)
	assert.Empty(t, session)
	assert.Empty(t, persistent)
}

func TestTracker_StorageFailureSkipsReport(t *testing.T) {
	store := NewMemoryStore()
	writeErr := errors.New("quota exceeded")
	store.FailWrites(writeErr)
	rep := &fakeReporter{}
	tr := NewTracker(store, rep, nil)

	before := testutil.ToFloat64(trackTotal.WithLabelValues(resultStorageError))
	err := tr.Track(context.Background(), "HKP-ABCDEF")

	require.Error(t, err)
	assert.True(t, errors.Is(err, writeErr))
	assert.Equal(t, 0, rep.callCount())
	assert.Equal(t, before+1, testutil.ToFloat64(trackTotal.WithLabelValues(resultStorageError)))
}

func TestTracker_TrackRejectsInvalidCode(t *testing.T) {
	rep := &fakeReporter{}
	tr := NewTracker(NewMemoryStore(), rep, nil)

	assert.ErrorIs(t, tr.Track(context.Background(), "HKP-abcdef"), ErrInvalidCode)
	assert.Equal(t, 0, rep.callCount())
}

func TestTracker_InvalidRefIsIgnored(t *testing.T) {
	store := NewMemoryStore()
	rep := &fakeReporter{}
	tr := NewTracker(store, rep, nil)

	done := tr.OnNavigationParamsChanged(context.Background(), url.Values{"ref": {"hkp-abcdef"}})
	select {
	case <-done:
	default:
		t.Fatal("expected channel to be closed when nothing is tracked")
	}

	assert.Equal(t, 0, rep.callCount())
	session, persistent := storedCodes(store)
	assert.Empty(t, session)
	assert.Empty(t, persistent)

	// The raw parameter is still what callers read back.
	code, ok := tr.GetReferralCode()
	assert.True(t, ok)
	assert.Equal(t, "hkp-abcdef", code)
}

func TestTracker_GetReferralCodePriority(t *testing.T) {
	store := NewMemoryStore()
	tr := NewTracker(store, &fakeReporter{}, nil)

	require.NoError(t, store.SetSession(StorageKey, "HKP-222222"))
	require.NoError(t, store.SetPersistent(StorageKey, "HKP-333333", PersistentTTL))

	tr.mu.Lock()
	tr.params = url.Values{"ref": {"HKP-111111"}}
	tr.mu.Unlock()

	code, ok := tr.GetReferralCode()
	assert.True(t, ok)
	assert.Equal(t, "HKP-111111", code)

	navigate(t, tr, url.Values{})
	code, _ = tr.GetReferralCode()
	assert.Equal(t, "HKP-222222", code)

	require.NoError(t, store.ClearSession(StorageKey))
	code, _ = tr.GetReferralCode()
	assert.Equal(t, "HKP-333333", code)

	require.NoError(t, store.ClearPersistent(StorageKey))
	code, ok = tr.GetReferralCode()
	assert.False(t, ok)
	assert.Empty(t, code)
}

func TestTracker_ClearReferralCode(t *testing.T) {
	store := NewMemoryStore()
	tr := NewTracker(store, &fakeReporter{}, nil)
	require.NoError(t, tr.Track(context.Background(), "HKP-ABCDEF"))

	tr.ClearReferralCode()
	session, persistent := storedCodes(store)
	assert.Empty(t, session)
	assert.Empty(t, persistent)

	assert.NotPanics(t, tr.ClearReferralCode)
	_, ok := tr.GetReferralCode()
	assert.False(t, ok)
}

func TestTracker_TrackTwiceSameCode(t *testing.T) {
	srv := newBackend(t, http.StatusNoContent)
	store := NewMemoryStore()
	tr := NewTracker(store, NewHTTPReporter(srv.URL, time.Second), nil)

	first := tr.OnNavigationParamsChanged(context.Background(), url.Values{"ref": {"HKP-ABCDEF"}})
	second := tr.OnNavigationParamsChanged(context.Background(), url.Values{"ref": {"HKP-ABCDEF"}})
	<-first
	<-second

	session, persistent := storedCodes(store)
	assert.Equal(t, "HKP-ABCDEF", session)
	assert.Equal(t, "HKP-ABCDEF", persistent)
	assert.Len(t, srv.recorded(), 2)
}

func TestTracker_ReportOutlivesCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	rep := &fakeReporter{gate: make(chan struct{})}
	tr := NewTracker(store, rep, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := tr.OnNavigationParamsChanged(ctx, url.Values{"ref": {"HKP-ABCDEF"}})
	cancel()
	close(rep.gate)
	<-done

	assert.Equal(t, 1, rep.callCount())
	session, _ := storedCodes(store)
	assert.Equal(t, "HKP-ABCDEF", session)
}

func TestTracker_ParamsAreCopied(t *testing.T) {
	tr := NewTracker(NewMemoryStore(), &fakeReporter{}, nil)
	params := url.Values{"ref": {"HKP-ABCDEF"}}
	<-tr.OnNavigationParamsChanged(context.Background(), params)

	params.Set("ref", "HKP-000000")

	code, _ := tr.GetReferralCode()
	assert.Equal(t, "HKP-ABCDEF", code)
}
