package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/diffanchor/diffanchor/internal/aggregate"
	"github.com/diffanchor/diffanchor/internal/budget"
	"github.com/diffanchor/diffanchor/internal/diff"
	"github.com/diffanchor/diffanchor/internal/findings"
	"github.com/diffanchor/diffanchor/internal/github"
	"github.com/diffanchor/diffanchor/internal/logging"
	"github.com/diffanchor/diffanchor/internal/render"
	"github.com/diffanchor/diffanchor/internal/report"
	"github.com/diffanchor/diffanchor/internal/ruleset"
	"github.com/diffanchor/diffanchor/internal/validate"
	"github.com/diffanchor/diffanchor/pkg/models"
)

// Submitter is the platform surface the pipeline needs: one capability probe,
// one metadata lookup, and one atomic review creation.
type Submitter interface {
	ProbeCapability(ctx context.Context) render.Capability
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	CreateReview(ctx context.Context, owner, repo string, number int, payload models.ReviewPayload) (*github.ReviewResult, error)
}

// Config holds the review pipeline configuration.
type Config struct {
	StageOrder  []string
	MaxComments int
	ChunkLines  int
	Rules       *ruleset.Table
}

// Request contains everything needed to anchor and publish one review.
type Request struct {
	Owner     string
	Repo      string
	Number    int
	CommitSHA string
	DiffText  string
	Inputs    []findings.StageInput
	DryRun    bool
}

// Result carries the run report; the report is always populated, even when
// submission fails, so callers can persist it for diagnosis.
type Result struct {
	Report models.Report
}

// Service runs the anchoring pipeline: normalize, validate against the diff
// index, deduplicate, render, budget, and submit as a single review.
type Service struct {
	client Submitter
	config Config
	logger *logging.RunLogger
}

// NewService creates a review service. client may be nil only for dry runs.
func NewService(client Submitter, config Config, logger *logging.RunLogger) *Service {
	return &Service{client: client, config: config, logger: logger}
}

const reviewEvent = "COMMENT"

// Run executes the pipeline. Per-finding problems are absorbed into counters;
// only submission-level failures produce an error.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}

	s.logger.LogSection("DIFF ADDRESSING")
	index := diff.NewParser().Parse(req.DiffText)
	s.logger.Log("indexed %d changed files", index.Len())

	s.logger.LogSection("FINDING NORMALIZATION")
	loaded := findings.NewLoader(s.config.StageOrder, s.config.Rules, s.logger).Load(req.Inputs)
	res.Report.TotalFindings = len(loaded.Findings)
	res.Report.Warnings = loaded.Warnings
	s.logger.Log("loaded %d findings from %d stages", len(loaded.Findings), len(loaded.Stages))

	s.logger.LogSection("RANGE VALIDATION")
	validated := validate.NewValidator(index, s.logger).Validate(loaded.Findings)
	res.Report.SkippedOutOfRange = validated.OutOfRange
	s.logger.Log("%d findings in range, %d dropped, %d downgraded",
		len(validated.Kept), validated.OutOfRange, validated.Downgraded)

	deduped := aggregate.Dedup(validated.Kept)
	res.Report.SkippedDuplicate = deduped.Duplicates

	capability := render.CapabilityUnknown
	if !req.DryRun && s.client != nil {
		capability = s.client.ProbeCapability(ctx)
		s.logger.Log("multi-line capability: %s", capability)
	}

	payload := s.buildPayload(deduped.Findings, loaded.Stages, capability, &res.Report)
	res.Report.PostedComments = len(payload.Comments)
	byStage, bySeverity := report.Tally(payload.Comments)
	res.Report.ByStage = byStage
	res.Report.BySeverity = bySeverity

	if req.DryRun {
		res.Report.Payload = &payload
		s.logger.Log("dry run: built payload with %d comments, skipping submission", len(payload.Comments))
		return res, nil
	}

	s.logger.LogSection("SUBMISSION")
	commitSHA := req.CommitSHA
	if commitSHA == "" {
		pr, err := s.client.GetPullRequest(ctx, req.Owner, req.Repo, req.Number)
		if err != nil {
			return res, fmt.Errorf("resolving head commit: %w", err)
		}
		commitSHA = pr.HeadSHA
		s.logger.Log("resolved head commit %s", commitSHA)
	}
	payload.CommitID = commitSHA

	created, err := s.client.CreateReview(ctx, req.Owner, req.Repo, req.Number, payload)
	if err != nil && errors.Is(err, github.ErrMultilineUnsupported) {
		// The probe was optimistic and the platform disagreed: re-render
		// everything degraded and submit once more.
		s.logger.Warnf("platform rejected multi-line fields, re-rendering degraded")
		payload = s.buildPayload(deduped.Findings, loaded.Stages, render.CapabilityUnsupported, &res.Report)
		payload.CommitID = commitSHA
		res.Report.PostedComments = len(payload.Comments)
		byStage, bySeverity = report.Tally(payload.Comments)
		res.Report.ByStage = byStage
		res.Report.BySeverity = bySeverity

		created, err = s.client.CreateReview(ctx, req.Owner, req.Repo, req.Number, payload)
	}
	if err != nil {
		return res, err
	}

	res.Report.ReviewID = created.ID
	res.Report.ReviewURL = created.HTMLURL
	s.logger.Log("review %d created: %s", created.ID, created.HTMLURL)
	return res, nil
}

// buildPayload renders, budgets, and wraps the comment set. The omission
// count feeds both the report and the summary body.
func (s *Service) buildPayload(deduped []models.Finding, stages []string, capability render.Capability, rep *models.Report) models.ReviewPayload {
	renderer := render.NewRenderer(capability, s.config.ChunkLines)
	comments := renderer.RenderAll(deduped)

	pruned := budget.Prune(comments, s.config.MaxComments)
	rep.SkippedOverLimit = pruned.Omitted

	return models.ReviewPayload{
		Body:     render.BuildSummary(pruned.Comments, stages, pruned.Omitted),
		Event:    reviewEvent,
		Comments: pruned.Comments,
	}
}
