package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/llm"
	"github.com/squireai/squire/internal/repository"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify backend, repo-host, and LLM connectivity",
	Long: `Checks that the configured worker backend can be installed, that a
repo-host token is configured (it is not tested against any repository), and
that the configured LLM model resolves to a reachable provider.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadSquire(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true
	fmt.Println("=== squire doctor ===")
	fmt.Println()

	fmt.Print("Worker backend ............ ")
	if err := backend.Install(cfg); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", backend.Current().Name())
	}

	fmt.Print("Repo-host credentials ..... ")
	if cfg.RepoHostToken == "" {
		fmt.Println("WARN (repo_host_token not configured)")
		allOK = false
	} else {
		fmt.Println("configured (connectivity not verified)")
	}

	fmt.Print("LLM model ................. ")
	provider, err := llm.New(cfg.Model)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else if !provider.IsAvailable(ctx) {
		fmt.Printf("WARN (%s configured but not reachable)\n", cfg.Model)
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", cfg.Model)
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed.")
	} else {
		fmt.Println("Some checks failed — see output above.")
	}
	return nil
}

// checkRepoConnectivity wraps repository.CheckConnectivity. No command calls
// it; doctor itself only reports whether a token is configured, since it has
// no single repo to probe.
func checkRepoConnectivity(ctx context.Context, repoURL, token string) error {
	return repository.CheckConnectivity(ctx, repoURL, token)
}
