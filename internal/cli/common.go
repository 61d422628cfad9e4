package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/gda/internal/archive"
	"github.com/danieljhkim/gda/internal/clock"
	"github.com/danieljhkim/gda/internal/config"
	"github.com/danieljhkim/gda/internal/fsops"
	"github.com/danieljhkim/gda/internal/hash"
	"github.com/danieljhkim/gda/internal/logging"
	"github.com/danieljhkim/gda/internal/remote"
	"github.com/danieljhkim/gda/internal/remote/githubstore"
	"github.com/danieljhkim/gda/internal/remote/s3store"
	"github.com/danieljhkim/gda/internal/sync"
)

// logOutput receives diagnostics; command results go to stdout.
var logOutput io.Writer = os.Stderr

// newStore builds the release store selected by the user settings. Tests
// replace it with an in-memory store.
var newStore = func(ctx context.Context, settings *config.Settings, hasher hash.Hasher) (remote.Store, error) {
	switch settings.Backend {
	case config.BackendS3:
		return s3store.New(ctx, s3store.Options{
			Region:    settings.S3.Region,
			Endpoint:  settings.S3.Endpoint,
			PathStyle: settings.S3.PathStyle,
		}, hasher)
	case config.BackendGitHub:
		token := githubstore.TokenFromEnv()
		if token == "" {
			token = settings.GitHub.Token
		}
		return githubstore.New(githubstore.Options{
			Token:     token,
			BaseURL:   settings.GitHub.BaseURL,
			UploadURL: settings.GitHub.UploadURL,
		}, hasher)
	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownBackend, settings.Backend)
	}
}

// newLogger applies, in order, the config file level, GDA_LOG_* and --verbose.
func newLogger(settings *config.Settings) zerolog.Logger {
	cfg := logging.DefaultConfig()
	if lvl, ok := logging.ParseLevel(settings.LogLevel); ok {
		cfg.Level = lvl
	}
	cfg = logging.FromEnv(cfg)
	if verbose {
		cfg.Level = zerolog.DebugLevel
	}
	return logging.New(logOutput, cfg)
}

// projectPaths locates the project from the --manifest flag.
func projectPaths() (*config.Paths, error) {
	paths, err := config.ProjectPaths(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get project paths: %w", err)
	}
	return paths, nil
}

// newSyncer creates a syncer with real implementations of all dependencies.
// withStore is false for commands that never reach the network.
func newSyncer(ctx context.Context, withStore bool) (*sync.Syncer, *config.Paths, error) {
	paths, err := projectPaths()
	if err != nil {
		return nil, nil, err
	}

	settings, err := config.LoadSettings(config.SettingsPath())
	if err != nil {
		return nil, nil, err
	}
	log := newLogger(settings)

	fs := fsops.NewRealFS()
	hasher := hash.NewSHA256Hasher()

	var store remote.Store
	if withStore {
		store, err = newStore(ctx, settings, hasher)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s store: %w", settings.Backend, err)
		}
	}

	syncer := sync.New(store, archive.NewCodec(fs, hasher), fs, hasher, clock.RealClock{}, log)
	return syncer, paths, nil
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
