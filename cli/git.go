package cli

// This file contains Git integration utilities for retrieving
// repository information.

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/perfgo/testkeeper/model"
	"github.com/perfgo/testkeeper/session"
)

// getGitInfo returns the commit and branch checked out in dir, or in the
// working directory when dir is empty.
func (a *App) getGitInfo(dir string) (*model.Git, error) {
	commit, err := gitOutput(dir, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get git commit: %w", err)
	}

	branch, err := gitOutput(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get git branch: %w", err)
	}

	return &model.Git{Commit: commit, Branch: branch}, nil
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// gitOption records the current checkout in a new run's header. A missing
// repository is not an error.
func (a *App) gitOption() []session.Option {
	git, err := a.getGitInfo("")
	if err != nil {
		a.logger.Debug().Err(err).Msg("Could not get git information")
		return nil
	}
	return []session.Option{session.WithGitInfo(git)}
}
