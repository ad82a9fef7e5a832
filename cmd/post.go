package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/diffanchor/diffanchor/internal/config"
	"github.com/diffanchor/diffanchor/internal/findings"
	"github.com/diffanchor/diffanchor/internal/github"
	"github.com/diffanchor/diffanchor/internal/logging"
	"github.com/diffanchor/diffanchor/internal/report"
	"github.com/diffanchor/diffanchor/internal/retry"
	"github.com/diffanchor/diffanchor/internal/review"
	"github.com/diffanchor/diffanchor/internal/ruleset"
)

// PostCommand returns the post command
func PostCommand() *cli.Command {
	return &cli.Command{
		Name:  "post",
		Usage: "Anchor checker findings to a pull request diff and post them as one review",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "diff",
				Usage:    "Unified diff `FILE` for the pull request (use - for stdin)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "findings",
				Aliases: []string{"f"},
				Usage:   "Stage findings as `STAGE=FILE` (repeatable, priority follows order)",
			},
			&cli.StringFlag{
				Name:     "repo",
				Usage:    "Target repository as `OWNER/REPO`",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "pr",
				Usage:    "Pull request `NUMBER`",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "commit-sha",
				Usage: "Head commit `SHA`; resolved from the pull request when omitted",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Platform token; defaults to GITHUB_TOKEN or GHES_TOKEN",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "API base `URL` for enterprise deployments",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the run report JSON to `FILE` (use - for stdout)",
				Value:   "diffanchor_report.json",
			},
			&cli.StringFlag{
				Name:  "checklist",
				Usage: "Checklist rule table `FILE` supplying severity and message defaults",
			},
			&cli.IntFlag{
				Name:  "max-comments",
				Usage: "Override the inline comment cap",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Build the payload and report without posting",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose output for this command",
			},
		},
		Action: runPost,
	}
}

func runPost(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	owner, repo, err := splitRepo(c.String("repo"))
	if err != nil {
		return err
	}

	inputs, err := parseStageInputs(c.StringSlice("findings"))
	if err != nil {
		return err
	}

	diffText, err := readDiff(c.String("diff"))
	if err != nil {
		return fmt.Errorf("failed to read diff: %w", err)
	}

	checklistPath := c.String("checklist")
	if checklistPath == "" {
		checklistPath = cfg.Review.Checklist
	}
	var rules *ruleset.Table
	if checklistPath != "" {
		rules, err = ruleset.Load(checklistPath)
		if err != nil {
			return fmt.Errorf("failed to load checklist: %w", err)
		}
	}

	logger, err := logging.StartRunLogging(cfg.Review.LogDir, c.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to start run logging: %w", err)
	}
	defer logger.Close()

	dryRun := c.Bool("dry-run")

	var submitter review.Submitter
	if !dryRun {
		token := resolveToken(c)
		if token == "" {
			return fmt.Errorf("no platform token: pass --token or set GITHUB_TOKEN")
		}
		retryCfg := retry.DefaultConfig()
		retryCfg.MaxRetries = cfg.HTTP.MaxRetries
		retryCfg.BaseDelay = time.Duration(cfg.HTTP.BackoffSeconds) * time.Second
		client, err := github.NewClient(token, resolveAPIURL(c, cfg), retryCfg, logger)
		if err != nil {
			return err
		}
		submitter = client
	}

	maxComments := cfg.Review.MaxComments
	if c.IsSet("max-comments") {
		maxComments = c.Int("max-comments")
	}
	stageOrder := cfg.Review.Stages
	if len(stageOrder) == 0 {
		stageOrder = findings.DefaultStageOrder
	}

	svc := review.NewService(submitter, review.Config{
		StageOrder:  stageOrder,
		MaxComments: maxComments,
		ChunkLines:  cfg.Review.ChunkLines,
		Rules:       rules,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, runErr := svc.Run(ctx, review.Request{
		Owner:     owner,
		Repo:      repo,
		Number:    c.Int("pr"),
		CommitSHA: c.String("commit-sha"),
		DiffText:  string(diffText),
		Inputs:    inputs,
		DryRun:    dryRun,
	})

	// The report is written even when submission failed so the counters and
	// warnings are available for diagnosis.
	if res != nil {
		if werr := report.Write(c.String("output"), &res.Report); werr != nil {
			logger.Errorf("failed to write report: %v", werr)
			if runErr == nil {
				runErr = werr
			}
		}
	}
	if runErr != nil {
		return runErr
	}

	printSummary(c, res)
	return nil
}

func printSummary(c *cli.Context, res *review.Result) {
	r := res.Report
	if c.Bool("dry-run") {
		fmt.Printf("Dry run: %d comments built (of %d findings), nothing posted\n",
			r.PostedComments, r.TotalFindings)
	} else {
		fmt.Printf("Posted review %d with %d comments: %s\n",
			r.ReviewID, r.PostedComments, r.ReviewURL)
	}
	if r.SkippedOutOfRange+r.SkippedDuplicate+r.SkippedOverLimit > 0 {
		fmt.Printf("Skipped: %d out of range, %d duplicate, %d over limit\n",
			r.SkippedOutOfRange, r.SkippedDuplicate, r.SkippedOverLimit)
	}
	for _, w := range r.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
}

// readDiff loads the unified diff, with "-" meaning stdin, matching the
// report writer's convention.
func readDiff(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func splitRepo(s string) (owner, repo string, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid --repo %q, expected OWNER/REPO", s)
	}
	return parts[0], parts[1], nil
}

// parseStageInputs turns repeated STAGE=FILE values into ordered stage
// inputs. A bare FILE without a stage name is rejected rather than guessed.
func parseStageInputs(values []string) ([]findings.StageInput, error) {
	inputs := make([]findings.StageInput, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		stage, path, ok := strings.Cut(v, "=")
		if !ok || stage == "" || path == "" {
			return nil, fmt.Errorf("invalid --findings %q, expected STAGE=FILE", v)
		}
		if seen[stage] {
			return nil, fmt.Errorf("stage %q given more than once", stage)
		}
		seen[stage] = true
		inputs = append(inputs, findings.StageInput{Stage: stage, Path: path})
	}
	return inputs, nil
}
