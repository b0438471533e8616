// Command debwrap builds a binary Debian package from a YAML manifest.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/debwrap/debwrap/deb"
	"github.com/debwrap/debwrap/manifest"
)

var verbosity int

func main() {
	rootCmd := &cobra.Command{
		Use:          "debwrap",
		Short:        "Build Debian binary packages from declarative manifests",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")
	rootCmd.AddCommand(buildCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildCmd() *cobra.Command {
	var (
		output      string
		runLintian  bool
		failOnLint  bool
		signKeyPath string
		keepStaging bool
	)

	cmd := &cobra.Command{
		Use:   "build <manifest.yaml>",
		Short: "Build the package described by a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(verbosity)

			pkg, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			ctx, err := deb.NewBuildContext(logger)
			if err != nil {
				return err
			}
			logger.Debug().Str("staging", ctx.Staging().Root()).Msg("staging allocated")

			if err := ctx.Build(pkg); err != nil {
				logger.Error().Str("staging", ctx.Staging().Root()).
					Msg("build failed, staging directory retained for inspection")
				return err
			}

			opts := deb.PackOptions{
				RunLintian: runLintian,
				FailOnLint: failOnLint,
				LintOutput: cmd.OutOrStdout(),
			}
			if signKeyPath != "" {
				key, err := os.ReadFile(signKeyPath)
				if err != nil {
					return fmt.Errorf("reading signing key: %w", err)
				}
				opts.SignKey = string(key)
			}

			if output == "" {
				archs := pkg.Architecture.Resolve()
				output = fmt.Sprintf("%s_%s_%s.deb", pkg.Name, pkg.Version, strings.Join(archs, "-"))
			}
			if err := ctx.Pack(output, opts); err != nil {
				logger.Error().Str("staging", ctx.Staging().Root()).
					Msg("pack failed, staging directory retained for inspection")
				return err
			}

			if keepStaging {
				logger.Info().Str("staging", ctx.Staging().Root()).Msg("staging directory kept")
			} else if err := ctx.Remove(); err != nil {
				return fmt.Errorf("removing staging directory: %w", err)
			}

			logger.Info().Str("package", output).Msg("package built")
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (default <name>_<version>_<arch>.deb)")
	cmd.Flags().BoolVar(&runLintian, "lintian", false, "check the finished package with lintian")
	cmd.Flags().BoolVar(&failOnLint, "fail-on-lint", false, "treat lintian-reported defects as fatal")
	cmd.Flags().StringVar(&signKeyPath, "sign-key", "", "path to an ASCII-armored PGP private key for package signing")
	cmd.Flags().BoolVar(&keepStaging, "keep-staging", false, "keep the staging directory after a successful build")
	return cmd
}

// newLogger builds a console logger whose level tracks -v.
func newLogger(verbosity int) zerolog.Logger {
	var level zerolog.Level
	switch verbosity {
	case 0:
		level = zerolog.WarnLevel
	case 1:
		level = zerolog.InfoLevel
	default:
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
