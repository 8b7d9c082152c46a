package repository

import (
	"context"
	"fmt"
	"os"

	gogit "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// CheckConnectivity verifies repoHostToken authenticates against repoURL by
// attempting a shallow, single-branch clone into a discarded temp
// directory. Its only caller is cmd's checkRepoConnectivity, which no
// command invokes, so doctor does not run this probe. Narrowed from
// internal/repository/clone.go's
// full CloneManager — Squire/Steward never keeps a working tree of its
// own, so only the connectivity probe survives.
func CheckConnectivity(ctx context.Context, repoURL, token string) error {
	tmpDir, err := os.MkdirTemp("", "squire-doctor-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	opts := &gogit.CloneOptions{
		URL:   repoURL,
		Depth: 1,
	}
	if token != "" {
		opts.Auth = &githttp.BasicAuth{
			Username: "squire",
			Password: token,
		}
	}

	if _, err := gogit.PlainCloneContext(ctx, tmpDir, false, opts); err != nil {
		return fmt.Errorf("cloning %s: %w", repoURL, err)
	}
	return nil
}
