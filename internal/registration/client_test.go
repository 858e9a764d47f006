package registration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"interviewmic/internal/domain"
)

var testProfile = domain.CandidateProfile{LinkedInURL: "https://li/x", ResumeName: "r.pdf"}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestRegisterSuccessSendsExpectedBody(t *testing.T) {
	t.Parallel()

	var got map[string]string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/submit", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"Profile scraped successfully!","profile":{"name":"Ada","bio":"Engineer","experiences":[{"company":"A"},{"company":"B"}]}}`))
	})

	client := NewClient(Config{BaseURL: server.URL}, zaptest.NewLogger(t))
	result := client.Register(context.Background(), testProfile)

	require.True(t, result.Success, "result: %+v", result)
	assert.Equal(t, map[string]string{"linkedin": "https://li/x", "resumeName": "r.pdf"}, got)
	assert.Equal(t, "Profile scraped successfully!", result.Message)
	require.NotNil(t, result.Candidate)
	assert.Equal(t, domain.CandidateSummary{Name: "Ada", Bio: "Engineer", Experiences: 2}, *result.Candidate)
}

func TestRegisterSuccessWithoutProfile(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	result := NewClient(Config{BaseURL: server.URL + "/"}, zaptest.NewLogger(t)).Register(context.Background(), testProfile)
	require.True(t, result.Success)
	assert.Nil(t, result.Candidate)
}

func TestRegisterServerRejectedStatusCode(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","message":"scrape failed"}`))
	})

	result := NewClient(Config{BaseURL: server.URL}, zaptest.NewLogger(t)).Register(context.Background(), testProfile)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ErrorCodeServerRejected, result.Kind)
	assert.Contains(t, result.Reason, "500")
	assert.Contains(t, result.Reason, "scrape failed")
}

func TestRegisterServerRejectedStatusField(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"server rejected"}`))
	})

	result := NewClient(Config{BaseURL: server.URL}, zaptest.NewLogger(t)).Register(context.Background(), testProfile)
	assert.Equal(t, domain.RegistrationFailed(domain.ErrorCodeServerRejected, "server rejected"), result)
}

func TestRegisterMalformedResponses(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":       `<html>oops</html>`,
		"empty body":     ``,
		"missing status": `{"message":"hi"}`,
		"unknown status": `{"status":"pending"}`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			result := NewClient(Config{BaseURL: server.URL}, zaptest.NewLogger(t)).Register(context.Background(), testProfile)
			assert.False(t, result.Success)
			assert.Equal(t, domain.ErrorCodeMalformedResponse, result.Kind)
			assert.NotEmpty(t, result.Reason)
		})
	}
}

func TestRegisterNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	result := NewClient(Config{BaseURL: url}, zaptest.NewLogger(t)).Register(context.Background(), testProfile)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ErrorCodeNetworkFailure, result.Kind)
	assert.Contains(t, result.Reason, "network unreachable")
}

func TestRegisterTimeoutIsNetworkFailureAndNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
	})
	defer close(release)

	client := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, zaptest.NewLogger(t))
	result := client.Register(context.Background(), testProfile)

	assert.Equal(t, domain.ErrorCodeNetworkFailure, result.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegisterCancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := NewClient(Config{BaseURL: server.URL}, zaptest.NewLogger(t)).Register(ctx, testProfile)
	assert.Equal(t, domain.ErrorCodeNetworkFailure, result.Kind)
	assert.Equal(t, "registration cancelled", result.Reason)
}
