package referral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TrackPath is where the partner backend accepts referral reports
const TrackPath = "/api/partner/track-referral"

// ErrReportFailed wraps every unsuccessful report attempt
var ErrReportFailed = errors.New("referral report failed")

// Reporter tells the partner backend that a referral code was seen
type Reporter interface {
	Report(ctx context.Context, code string) error
}

// TrackRequest is the JSON body sent to TrackPath
type TrackRequest struct {
	ReferralCode string `json:"referralCode"`
}

// Visitor describes the browser a report is made on behalf of
type Visitor struct {
	IP        string
	UserAgent string
}

type visitorKey struct{}

// WithVisitor attaches the originating browser to ctx so reports made from a
// server can forward it.
func WithVisitor(ctx context.Context, v Visitor) context.Context {
	return context.WithValue(ctx, visitorKey{}, v)
}

// VisitorFrom returns the visitor attached by WithVisitor
func VisitorFrom(ctx context.Context) (Visitor, bool) {
	v, ok := ctx.Value(visitorKey{}).(Visitor)
	return v, ok
}

// HTTPReporter posts referral reports to a backend base URL
type HTTPReporter struct {
	baseURL    string
	httpClient *http.Client
}

// DefaultReportTimeout bounds a report when none is configured. Page responses
// wait on the report, so it is kept short.
const DefaultReportTimeout = 2 * time.Second

// NewHTTPReporter creates a reporter. A zero timeout means DefaultReportTimeout.
func NewHTTPReporter(baseURL string, timeout time.Duration) *HTTPReporter {
	if timeout == 0 {
		timeout = DefaultReportTimeout
	}
	return &HTTPReporter{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Report sends exactly one POST. Any transport error or non-2xx status is
// returned wrapped in ErrReportFailed. There are no retries.
func (r *HTTPReporter) Report(ctx context.Context, code string) error {
	body, err := json.Marshal(TrackRequest{ReferralCode: code})
	if err != nil {
		return fmt.Errorf("%w: encode body: %v", ErrReportFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+TrackPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrReportFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v, ok := VisitorFrom(ctx); ok {
		if v.IP != "" {
			req.Header.Set("X-Forwarded-For", v.IP)
		}
		if v.UserAgent != "" {
			req.Header.Set("User-Agent", v.UserAgent)
		}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReportFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", ErrReportFailed, resp.StatusCode)
	}
	return nil
}
