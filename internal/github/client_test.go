package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffanchor/diffanchor/internal/render"
	"github.com/diffanchor/diffanchor/internal/retry"
	"github.com/diffanchor/diffanchor/pkg/models"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxRetries: 3,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient("test-token", url, fastRetry(), nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient("", "", fastRetry(), nil)
	assert.ErrorIs(t, err, ErrCredentialMissing)
}

func TestProbeCapability(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    render.Capability
	}{
		{
			name: "github.com has no installed_version",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"verifiable_password_authentication": false}`)
			},
			want: render.CapabilitySupported,
		},
		{
			name: "enterprise at threshold",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"installed_version": "3.12.1"}`)
			},
			want: render.CapabilitySupported,
		},
		{
			name: "enterprise below threshold",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"installed_version": "2.22.0"}`)
			},
			want: render.CapabilityUnsupported,
		},
		{
			name: "probe failure is unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: render.CapabilityUnknown,
		},
		{
			name: "garbage version is unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"installed_version": "not-a-version"}`)
			},
			want: render.CapabilityUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			assert.Equal(t, tt.want, c.ProbeCapability(context.Background()))
		})
	}
}

func TestGetPullRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/game/pulls/42", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"number": 42, "head": {"sha": "abc123"}, "html_url": "https://example.com/pr/42"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	pr, err := c.GetPullRequest(context.Background(), "acme", "game", 42)
	require.NoError(t, err)
	assert.Equal(t, "abc123", pr.HeadSHA)
	assert.Equal(t, 42, pr.Number)
}

func TestCreateReview_Success(t *testing.T) {
	var got models.ReviewPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/game/pulls/7/reviews", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 991, "html_url": "https://example.com/review/991"}`)
	}))
	defer srv.Close()

	payload := models.ReviewPayload{
		CommitID: "abc123",
		Body:     "summary",
		Event:    "COMMENT",
		Comments: []models.Comment{{Path: "Foo.cpp", Line: 11, Side: "RIGHT", Body: "b"}},
	}

	c := newTestClient(t, srv.URL)
	res, err := c.CreateReview(context.Background(), "acme", "game", 7, payload)
	require.NoError(t, err)
	assert.Equal(t, int64(991), res.ID)
	assert.Equal(t, "https://example.com/review/991", res.HTMLURL)

	assert.Equal(t, "COMMENT", got.Event)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, 11, got.Comments[0].Line)
}

func TestCreateReview_RetriesServerErrors(t *testing.T) {
	// 503 twice, then 201: the run succeeds after two retries.
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 1, "html_url": "u"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	start := time.Now()
	res, err := c.CreateReview(context.Background(), "o", "r", 1, models.ReviewPayload{Event: "COMMENT"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, 3, calls)

	// Backoff doubles: 5ms then 10ms with the test config.
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestCreateReview_ExhaustedRetriesFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateReview(context.Background(), "o", "r", 1, models.ReviewPayload{Event: "COMMENT"})
	require.Error(t, err)
	assert.Equal(t, 4, calls, "1 attempt + 3 retries")
}

func TestCreateReview_ClientErrorNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message": "Validation Failed", "errors": [{"field": "path"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateReview(context.Background(), "o", "r", 1, models.ReviewPayload{Event: "COMMENT"})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx must not be retried")
	assert.NotErrorIs(t, err, ErrMultilineUnsupported)
}

func TestCreateReview_MultilineRejectionSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message": "Validation Failed", "errors": ["start_line is not supported"]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateReview(context.Background(), "o", "r", 1, models.ReviewPayload{Event: "COMMENT"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMultilineUnsupported))
}
