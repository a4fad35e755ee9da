package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-docs/docindex/internal/config"
	docerrors "github.com/kestrel-docs/docindex/internal/errors"
	"github.com/kestrel-docs/docindex/internal/logging"
	"github.com/kestrel-docs/docindex/pkg/version"
)

// Exit codes per the CLI surface contract: 0 success, 2 invalid usage,
// 3 partial success (some queued jobs failed), 4 consistency repair
// required, 5 unrecoverable error.
const (
	ExitSuccess          = 0
	ExitInvalidUsage     = 2
	ExitPartialSuccess   = 3
	ExitConsistencyDirty = 4
	ExitUnrecoverable    = 5
)

var (
	dataDirFlag string
	logLevel    string
	debugMode   bool
	ollamaHost  string

	loggingCleanup func()
)

// NewRootCmd builds the docindex root command and its full subcommand tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docindex",
		Short:         "Local-first hybrid vector/keyword document index",
		Long:          "docindex ingests documents into a dual vector and keyword index, keeps them in sync with their sources via a durable job queue, and serves hybrid (RRF/weighted) search over the result.",
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "override the persisted-state directory (default: config paths.data_dir)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "shorthand for --log-level debug")
	root.PersistentFlags().StringVar(&ollamaHost, "ollama-host", "", "enable Ollama-backed keyword/pair extraction against this host (default: disabled, fully offline)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logCfg := logging.DefaultConfig()
		if debugMode {
			logCfg = logging.DebugConfig()
		} else if logLevel != "" {
			logCfg.Level = logging.LevelFromString(logLevel)
		}
		_, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("set up logging: %w", err)
		}
		loggingCleanup = cleanup
		return nil
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if loggingCleanup != nil {
			loggingCleanup()
		}
		return nil
	}

	root.AddCommand(
		newAddCmd(),
		newUpdateCmd(),
		newRemoveCmd(),
		newSearchCmd(),
		newWatchCmd(),
		newQueueCmd(),
		newStatusCmd(),
		newMaintenanceCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration from the current directory, applying the
// --data-dir override on top. --ollama-host is applied later, in
// buildCapabilities.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.Paths.DataDir = dataDirFlag
	}
	return cfg, nil
}

// ExitCodeFor maps a returned error to the CLI surface's exit-code contract.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch docerrors.GetCategory(err) {
	case docerrors.CategoryValidation, docerrors.CategoryConfig:
		return ExitInvalidUsage
	case docerrors.CategoryConsistency:
		return ExitConsistencyDirty
	case "":
		switch err {
		case errPartialSuccess:
			return ExitPartialSuccess
		case errConsistencyDirty:
			return ExitConsistencyDirty
		default:
			return ExitUnrecoverable
		}
	default:
		return ExitUnrecoverable
	}
}

// errPartialSuccess is returned by commands (queue status, status) that
// complete but find some jobs or records in a failed state,
// so the caller's exit code distinguishes "ran, but look closer" from a
// clean run.
var errPartialSuccess = fmt.Errorf("completed with partial failures")
