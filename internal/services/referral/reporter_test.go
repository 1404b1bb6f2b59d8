package referral

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPReporter_StatusHandling(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusCreated, false},
		{http.StatusNoContent, false},
		{http.StatusMovedPermanently, true},
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		err := NewHTTPReporter(srv.URL, time.Second).Report(context.Background(), "HKP-ABCDEF")
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrReportFailed), "status %d", tt.status)
		} else {
			assert.NoError(t, err, "status %d", tt.status)
		}
		srv.Close()
	}
}

func TestHTTPReporter_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	err := NewHTTPReporter(srv.URL, 50*time.Millisecond).Report(context.Background(), "HKP-ABCDEF")
	assert.ErrorIs(t, err, ErrReportFailed)
}

func TestHTTPReporter_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultReportTimeout, NewHTTPReporter("http://localhost:3000", 0).httpClient.Timeout)
	assert.Equal(t, 2*time.Second, DefaultReportTimeout)
}

func TestHTTPReporter_TrimsBaseURLAndForwardsVisitor(t *testing.T) {
	var gotPath, gotXFF, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotXFF = r.Header.Get("X-Forwarded-For")
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	ctx := WithVisitor(context.Background(), Visitor{IP: "203.0.113.7", UserAgent: "Mozilla/5.0"})
	require.NoError(t, NewHTTPReporter(srv.URL+"/", time.Second).Report(ctx, "HKP-ABCDEF"))

	assert.Equal(t, TrackPath, gotPath)
	assert.Equal(t, "203.0.113.7", gotXFF)
	assert.Equal(t, "Mozilla/5.0", gotUA)
}
