package steward

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/repository"
	"github.com/squireai/squire/models"
)

// Collect runs the pipeline's first stage: enumerate open PRs, failed CI
// runs, open issues, and bot reviews for every configured repo-host
// repository according to its watch list, plus any configured file signals.
func Collect(ctx context.Context, cfg config.SignalsConfig, botUsers []string, githubHost, gitlabHost, token string) ([]models.Signal, error) {
	logger := logging.L(ctx, "steward.collect")
	var signals []models.Signal

	if len(cfg.GitHub.Repos) > 0 {
		host, err := repository.NewGitHub(token, githubHost)
		if err != nil {
			return nil, fmt.Errorf("creating GitHub client: %w", err)
		}
		s, err := collectFromHost(ctx, host, cfg.GitHub, botUsers)
		if err != nil {
			return nil, err
		}
		signals = append(signals, s...)
	}

	if len(cfg.GitLab.Repos) > 0 {
		host, err := repository.NewGitLab(token, gitlabHost)
		if err != nil {
			return nil, fmt.Errorf("creating GitLab client: %w", err)
		}
		s, err := collectFromHost(ctx, host, cfg.GitLab, botUsers)
		if err != nil {
			return nil, err
		}
		signals = append(signals, s...)
	}

	for _, path := range cfg.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable file signal", "path", path, "error", err)
			continue
		}
		signals = append(signals, models.Signal{
			Source:    models.SignalSourceFile,
			Type:      "file",
			Data:      map[string]any{"path": path, "body": string(data)},
			Timestamp: time.Now(),
		})
	}

	logger.Info("collect stage complete", "signals", len(signals))
	return signals, nil
}

// collectFromHost enumerates the watched signal kinds for every repo in
// watch.Repos against host. A repo is "owner/name"; malformed entries are
// skipped with a warning rather than aborting the whole cycle.
func collectFromHost(ctx context.Context, host repository.RepoHost, watch config.RepoHostWatch, botUsers []string) ([]models.Signal, error) {
	logger := logging.L(ctx, "steward.collect")
	watchSet := make(map[string]bool, len(watch.Watch))
	for _, w := range watch.Watch {
		watchSet[strings.ToLower(w)] = true
	}

	var signals []models.Signal
	for _, repo := range watch.Repos {
		owner, name, ok := splitOwnerRepo(repo)
		if !ok {
			logger.Warn("skipping malformed repo entry", "repo", repo)
			continue
		}

		if watchSet["prs"] {
			s, err := host.ListOpenPRs(ctx, owner, name)
			if err != nil {
				return nil, fmt.Errorf("listing PRs on %s/%s: %w", owner, name, err)
			}
			signals = append(signals, s...)
		}
		if watchSet["ci"] {
			s, err := host.ListFailedChecks(ctx, owner, name)
			if err != nil {
				return nil, fmt.Errorf("listing failed checks on %s/%s: %w", owner, name, err)
			}
			signals = append(signals, s...)
		}
		if watchSet["issues"] {
			s, err := host.ListOpenIssues(ctx, owner, name)
			if err != nil {
				return nil, fmt.Errorf("listing issues on %s/%s: %w", owner, name, err)
			}
			signals = append(signals, s...)
		}
		if watchSet["reviews"] {
			s, err := host.ListBotReviews(ctx, owner, name, botUsers)
			if err != nil {
				return nil, fmt.Errorf("listing bot reviews on %s/%s: %w", owner, name, err)
			}
			signals = append(signals, s...)
		}
	}
	return signals, nil
}

func splitOwnerRepo(s string) (owner, name string, ok bool) {
	i := strings.Index(s, "/")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
