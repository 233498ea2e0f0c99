// Package cli implements the milestones command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/milestones/internal/paths"
	"github.com/mesh-intelligence/milestones/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

// app carries what PersistentPreRunE prepares for the subcommands.
type app struct {
	flags     rootFlags
	configDir string
	cfg       *viper.Viper
	logger    *zap.Logger
}

// NewRootCmd creates the top-level "milestones" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "milestones",
		Short: "Track travel badges and celebrate new ones",
		Long: `milestones evaluates a traveller's trip count against a catalog of badge
tiers, reports progress, and tells you exactly once when new badges unlock
within a session.`,
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: .milestones-db)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newEvaluateCmd(a))
	root.AddCommand(newObserveCmd(a))
	root.AddCommand(newSessionCmd(a))
	root.AddCommand(newCatalogCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	os.Exit(exitCode(root.Execute()))
}

// setup builds the logger and loads config.yaml before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.logger = newLogger(a.flags.verbose, cmd.ErrOrStderr())

	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysErr(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return sysErr(err)
	}
	a.configDir = configDir
	a.cfg = cfg
	a.logger.Debug("config loaded", zap.String("config_dir", configDir), zap.String("backend", cfg.GetString(cfgKeyBackend)))
	return nil
}

// newLogger returns a production zap logger writing to w. Only warnings
// and errors are shown unless verbose is set.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
	return zap.New(core)
}

// systemError marks failures of the environment (disk, database) as
// opposed to bad arguments or configuration.
type systemError struct{ err error }

func (e systemError) Error() string { return e.err.Error() }
func (e systemError) Unwrap() error { return e.err }

func sysErr(err error) error {
	if err == nil {
		return nil
	}
	return systemError{err: err}
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se systemError
	if errors.As(err, &se) && !isUserError(err) {
		return exitSysError
	}
	return exitUserError
}

// isUserError reports errors caused by arguments or configuration.
func isUserError(err error) bool {
	for _, target := range []error{
		types.ErrInvalidInput,
		types.ErrConfiguration,
		types.ErrSessionNotFound,
		types.ErrInvalidSessionID,
		types.ErrBackendEmpty,
		types.ErrBackendUnknown,
		types.ErrSyncStrategyUnknown,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
