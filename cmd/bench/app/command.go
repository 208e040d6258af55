package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/attenuator-bench/internal/bench"
	"github.com/roman-kulish/attenuator-bench/internal/discovery"
	"github.com/roman-kulish/attenuator-bench/internal/reduce"
)

var (
	ErrInstrumentsNotFound = errors.New("instruments not found, check connections; details in log")
	ErrSampleNotFound      = errors.New("sample not found, check connections; details in log")
	ErrSampleCheck         = errors.New("sample check failed; details in log")
	ErrMeasurement         = errors.New("measurement failed; details in log")
)

type flags struct {
	configPath string
	logLevel   string
	mock       bool

	profileID int
	check     bool
}

// session holds what every subcommand needs after discovery
type session struct {
	config *Config
	logger *slog.Logger
	bench  *bench.Bench
}

// NewRootCommand creates the `bench` command with its subcommands
func NewRootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "bench",
		Short: "RF attenuator characterization bench",
		Long: `Drives a vector network analyzer and a parallel-output code controller
through the test sequence of a programmable attenuator die and reduces the
captured sweeps.

Examples:
  bench discover --mock                  # Bind mock instruments
  bench check -c bench.yaml              # Check that a sample is inserted
  bench measure --profile 1 --check      # Check, then measure profile 1`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "path to the configuration file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level, overrides the configuration")
	root.PersistentFlags().BoolVar(&f.mock, "mock", false, "use mock instruments")

	root.AddCommand(
		newDiscoverCommand(&f),
		newCheckCommand(&f),
		newMeasureCommand(&f),
	)

	return root
}

func newDiscoverCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Find the analyzer and the code controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := start(cmd, f)
			if err != nil {
				return err
			}
			defer s.close()

			analyzer, controller := s.bench.Instruments()
			fmt.Fprintf(cmd.OutOrStdout(), "analyzer:   %s\ncontroller: %s\n", analyzer, controller)
			return nil
		},
	}
}

func newCheckCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that a sample is inserted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := start(cmd, f)
			if err != nil {
				return err
			}
			defer s.close()

			if err = s.checkSample(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "sample present")
			return nil
		},
	}
}

func newMeasureCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Measure every code of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := start(cmd, f)
			if err != nil {
				return err
			}
			defer s.close()

			if f.check {
				if err = s.checkSample(cmd.Context()); err != nil {
					return err
				}
			}

			catalog, err := s.config.Catalog()
			if err != nil {
				return err
			}

			p, err := catalog.Lookup(f.profileID)
			if err != nil {
				return err
			}

			if err = s.bench.Measure(cmd.Context(), p.ID); err != nil {
				return ErrMeasurement
			}

			rs := s.bench.Results().Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "profile %s\n\n", p.String())
			return writeSummary(cmd.OutOrStdout(), reduce.Summarize(&rs, p.Levels))
		},
	}

	cmd.Flags().IntVarP(&f.profileID, "profile", "p", 0, "profile id")
	cmd.Flags().BoolVar(&f.check, "check", false, "check the sample before measuring")

	return cmd
}

// start loads the configuration, sets up logging and discovers the instruments
func start(cmd *cobra.Command, f *flags) (*session, error) {
	config, err := LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	if f.logLevel != "" {
		config.Settings.LogLevel = f.logLevel
	}
	if f.mock {
		config.Devices.Mode = discovery.ModeMock
	}

	logger, err := NewLogger(cmd.ErrOrStderr(), config.Settings.LogLevel)
	if err != nil {
		return nil, err
	}

	b, err := NewBench(config, logger)
	if err != nil {
		return nil, err
	}

	if !b.Discover(cmd.Context()) {
		return nil, ErrInstrumentsNotFound
	}

	return &session{config: config, logger: logger, bench: b}, nil
}

func (s *session) checkSample(ctx context.Context) error {
	present, err := s.bench.CheckSample(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("sample check: %s", err.Error()))
		return ErrSampleCheck
	}
	if !present {
		return ErrSampleNotFound
	}
	return nil
}

func (s *session) close() {
	if err := s.bench.Close(); err != nil {
		s.logger.Warn(fmt.Sprintf("closing instruments: %s", err.Error()))
	}
}

// writeSummary prints one row per code in the order the codes were applied
func writeSummary(w io.Writer, summaries []reduce.CodeSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "step\tnominal, dB\tcode\tnormalized, dB\terror, dB\tmax |error|, dB\tS11, dB\tS22, dB\t")
	for i, s := range summaries {
		fmt.Fprintf(tw, "%d\t%.2f\t%06b\t%.3f\t%.3f\t%.3f\t%.2f\t%.2f\t\n",
			i+1,
			s.Level.Attenuation,
			s.Level.Code,
			s.MeanNormalized,
			s.MeanError,
			s.MaxAbsError,
			s.MeanInputReturn,
			s.MeanOutputReturn)
	}

	return tw.Flush()
}
