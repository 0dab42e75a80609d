package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oy3o/enhance/classpath"
	"github.com/oy3o/enhance/internal/config"
)

// app holds the global flags and what setup builds from them.
type app struct {
	configPath string
	classpath  []string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
	loader *classpath.Loader
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "enhance",
		Short:         "Write enhanced classes with valid stack map frames and detect enhanced classes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	flags.StringSliceVar(&a.classpath, "classpath", nil, "classpath entries searched before the configured ones")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newUpgradeCmd(a))
	root.AddCommand(newFramesCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	cfg.Classpath = append(append([]string(nil), a.classpath...), cfg.Classpath...)

	logger, err := cfg.Log.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	loader, err := classpath.New(cfg.Classpath, cfg.LoaderOptions(logger)...)
	if err != nil {
		return err
	}

	a.cfg, a.logger, a.loader = cfg, logger, loader
	logger.Debug("enhance: configured", "classpath", cfg.Classpath, "marker", cfg.Marker, "threshold", cfg.Threshold)
	return nil
}

func (a *app) close() {
	if a.loader != nil {
		a.loader.Close()
		a.loader = nil
	}
}

// read returns the bytes of arg, which is either a class file or a class
// name resolved on the classpath. path is empty for resolved names.
func (a *app) read(arg string) (b []byte, path string, err error) {
	fi, err := os.Stat(arg)
	switch {
	case err == nil && fi.Mode().IsRegular():
		b, err = os.ReadFile(arg)
		return b, arg, err
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return nil, "", err
	}
	b, err = a.loader.Resolve(arg)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", arg, err)
	}
	return b, "", nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		// No config or classpath needed.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "enhance "+version)
		},
	}
}
