// File: cmd/mdssboot/common.go
// Brief: Shared helpers: root resolution, manifest loading, plan building.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/example/mdssboot/internal/bootstrap"
	"github.com/example/mdssboot/internal/checkpoint"
)

func resolveRoot(opts *globalOptions) (string, error) {
	dir := strings.TrimSpace(opts.dir)
	if dir == "" {
		return "", fmt.Errorf("install root is required (--dir)")
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", fmt.Errorf("expand install root: %w", err)
	}
	return filepath.Abs(expanded)
}

// loadManifest resolves the manifest in precedence order: an explicit
// --manifest path must exist; otherwise <root>/bootstrap.yaml is used
// when present; otherwise the built-in stack manifest applies.
func loadManifest(opts *globalOptions, root string) (*bootstrap.Manifest, string, error) {
	if path := strings.TrimSpace(opts.manifest); path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, "", err
		}
		m, err := bootstrap.LoadManifest(expanded)
		if err != nil {
			return nil, "", err
		}
		return m, expanded, nil
	}
	local := filepath.Join(root, "bootstrap.yaml")
	if _, err := os.Stat(local); err == nil {
		m, err := bootstrap.LoadManifest(local)
		if err != nil {
			return nil, "", err
		}
		return m, local, nil
	}
	m, err := bootstrap.DefaultManifest()
	if err != nil {
		return nil, "", err
	}
	return m, "(built-in)", nil
}

func loadPlan(opts *globalOptions) (*bootstrap.Plan, string, error) {
	root, err := resolveRoot(opts)
	if err != nil {
		return nil, "", err
	}
	m, source, err := loadManifest(opts, root)
	if err != nil {
		return nil, "", err
	}
	p, err := bootstrap.Compile(m, root)
	if err != nil {
		return nil, "", fmt.Errorf("compile manifest %s: %w", source, err)
	}
	return p, source, nil
}

func openStore(root string) checkpoint.Store {
	return checkpoint.NewDirStore(filepath.Join(root, ".mdssboot", "checkpoints"))
}

// latestRunSummary returns the most recent journaled run under root,
// or nil when no journal or no run exists yet (fresh machine).
func latestRunSummary(ctx context.Context, root string) (*bootstrap.RunSummary, error) {
	journal, err := bootstrap.OpenJournal(root, true)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer journal.Close()

	id, err := journal.MostRecentRunID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return journal.GetRunSummary(ctx, id)
}
