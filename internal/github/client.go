package github

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

	"github.com/hashicorp/go-version"
	"golang.org/x/time/rate"

	"github.com/diffanchor/diffanchor/internal/logging"
	"github.com/diffanchor/diffanchor/internal/render"
	"github.com/diffanchor/diffanchor/internal/retry"
	"github.com/diffanchor/diffanchor/pkg/models"
)

// DefaultAPIURL targets github.com; enterprise deployments override it with
// their /api/v3 base.
const DefaultAPIURL = "https://api.github.com"

const requestTimeout = 30 * time.Second

// multilineMinVersion is the oldest enterprise server release whose review
// API accepts start_line/start_side fields. A /meta response without an
// installed_version is github.com, which always supports them.
var multilineMinVersion = version.Must(version.NewVersion("3.0"))

var (
	// ErrCredentialMissing aborts the run before any network call.
	ErrCredentialMissing = errors.New("no API credential provided")

	// ErrMultilineUnsupported reports that the platform rejected multi-line
	// positional fields; the caller re-renders degraded comments and submits
	// once more.
	ErrMultilineUnsupported = errors.New("platform rejected multi-line comment fields")
)

// apiError is a non-2xx API response.
type apiError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error %d on %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}

// Client talks to the review-hosting platform's REST API.
type Client struct {
	token    string
	apiURL   string
	httpCli  *http.Client
	limiter  *rate.Limiter
	retryCfg retry.Config
	logger   *logging.RunLogger
}

// NewClient creates an authenticated client. apiURL may be empty for the
// public default.
func NewClient(token, apiURL string, retryCfg retry.Config, logger *logging.RunLogger) (*Client, error) {
	if token == "" {
		return nil, ErrCredentialMissing
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		token:    token,
		apiURL:   strings.TrimRight(apiURL, "/"),
		httpCli:  &http.Client{Timeout: requestTimeout},
		limiter:  rate.NewLimiter(rate.Limit(5), 10),
		retryCfg: retryCfg,
		logger:   logger,
	}, nil
}

// ProbeCapability asks the platform whether multi-line suggestions are
// supported. Any probe failure yields the unknown state, which the renderer
// treats optimistically; the submission itself is the reactive fallback.
func (c *Client) ProbeCapability(ctx context.Context) render.Capability {
	var meta struct {
		InstalledVersion string `json:"installed_version"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/meta", nil, &meta); err != nil {
		c.logger.Warnf("capability probe failed, assuming multi-line support: %v", err)
		return render.CapabilityUnknown
	}

	if meta.InstalledVersion == "" {
		return render.CapabilitySupported
	}

	v, err := version.NewVersion(meta.InstalledVersion)
	if err != nil {
		c.logger.Warnf("capability probe returned unparseable version %q: %v", meta.InstalledVersion, err)
		return render.CapabilityUnknown
	}
	if v.GreaterThanOrEqual(multilineMinVersion) {
		return render.CapabilitySupported
	}
	c.logger.Log("server version %s predates multi-line suggestions, degrading", meta.InstalledVersion)
	return render.CapabilityUnsupported
}

// PullRequest carries the PR metadata this pipeline needs.
type PullRequest struct {
	Number  int
	HeadSHA string
	HTMLURL string
}

// GetPullRequest fetches PR metadata, used to resolve the head commit SHA
// when the caller does not supply one.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var pr struct {
		Number int `json:"number"`
		Head   struct {
			SHA string `json:"sha"`
		} `json:"head"`
		HTMLURL string `json:"html_url"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &pr); err != nil {
		return nil, fmt.Errorf("fetching pull request: %w", err)
	}
	return &PullRequest{Number: pr.Number, HeadSHA: pr.Head.SHA, HTMLURL: pr.HTMLURL}, nil
}

// ReviewResult is the platform's response to a created review.
type ReviewResult struct {
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// CreateReview submits one atomic review. Server errors are retried with
// bounded deterministic backoff; client errors fail immediately, and a 422
// naming the multi-line fields surfaces ErrMultilineUnsupported for the
// degraded-rendering fallback.
func (c *Client) CreateReview(ctx context.Context, owner, repo string, number int, payload models.ReviewPayload) (*ReviewResult, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", owner, repo, number)

	var out ReviewResult
	op := func() error {
		err := c.doJSON(ctx, http.MethodPost, path, payload, &out)
		if err == nil {
			return nil
		}

		var apiErr *apiError
		if !errors.As(err, &apiErr) {
			// Network-level failure: worth retrying.
			return err
		}
		if retry.RetryableStatus(apiErr.Status) {
			return err
		}
		if apiErr.Status == http.StatusUnprocessableEntity && mentionsMultilineFields(apiErr.Body) {
			return retry.Permanent(fmt.Errorf("%w: %s", ErrMultilineUnsupported, apiErr.Body))
		}
		return retry.Permanent(err)
	}

	res := retry.Do(ctx, c.retryCfg, op, c.logger)
	if !res.Success {
		return nil, fmt.Errorf("creating review: %w", res.LastError)
	}
	return &out, nil
}

func mentionsMultilineFields(body string) bool {
	return strings.Contains(body, "start_line") || strings.Contains(body, "start_side")
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{Status: resp.StatusCode, Method: method, Path: path, Body: strings.TrimSpace(string(body))}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}
