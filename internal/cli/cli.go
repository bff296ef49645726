// Package cli implements the command-line interface for s3log-levels.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eunmann/s3-log-levels/internal/config"
	"github.com/eunmann/s3-log-levels/internal/logctx"
	"github.com/eunmann/s3-log-levels/pkg/humanfmt"
	"github.com/eunmann/s3-log-levels/pkg/logging"
	"github.com/eunmann/s3-log-levels/pkg/logscan"
	"github.com/eunmann/s3-log-levels/pkg/memdiag"
	"github.com/eunmann/s3-log-levels/pkg/objstore"
	"github.com/eunmann/s3-log-levels/pkg/pricing"
	"github.com/eunmann/s3-log-levels/pkg/report"
)

// Set at build time with -ldflags.
var (
	version = "dev"
	commit  = "none"
)

const usage = "usage: s3log-levels <command> [options]\ncommands: count, list, version"

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "s3log-levels",
		Short:         "Count log lines by level across every object under an S3 prefix",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./s3log-levels.yaml or ~/.config/s3log-levels/)")

	root.AddCommand(
		newCountCmd(&cfgFile),
		newListCmd(&cfgFile),
		newVersionCmd(),
	)
	return root
}

func newCountCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Scan every log object and report ERROR/WARNING/INFO/DEBUG totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgFile, cmd)
			if err != nil {
				return err
			}
			return runCount(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func newListCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the objects a count would scan, without fetching them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgFile, cmd)
			if err != nil {
				return err
			}
			return runList(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "s3log-levels %s (commit %s)\n", version, commit)
			return err
		},
	}
}

func loadConfig(cfgFile string, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Init(cfg.Debug, cfg.HumanLogs)
	logctx.SetDefaultLogger(*logging.L())
	if cfg.ConfigFileUsed != "" {
		logging.L().Debug().Str("path", cfg.ConfigFileUsed).Msg("loaded config file")
	}
	return cfg, nil
}

func runCount(ctx context.Context, cfg config.Config, out io.Writer) error {
	checkFootprint(cfg)

	mem := memdiag.NewTracker(memdiag.FromEnv())
	mem.Start()
	defer mem.Stop()

	lister, factory, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	sc, err := logscan.NewScanner(lister, factory, cfg.ScanOptions())
	if err != nil {
		return err
	}

	mem.SetPhase("scan")
	res, err := sc.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	mem.SetPhase("report")

	if err := report.Write(out, res, cfg.ReportFormat()); err != nil {
		return err
	}

	if cfg.ObjectsOut != "" {
		if err := report.WriteObjectsParquet(cfg.ObjectsOut, res.Snapshot.Objects); err != nil {
			return err
		}
		logging.L().Info().
			Str("path", cfg.ObjectsOut).
			Int("objects", len(res.Snapshot.Objects)).
			Msg("wrote per-object results")
	}
	return nil
}

// checkFootprint warns when the worst-case buffer memory of the configured
// pool would not fit comfortably on this host.
func checkFootprint(cfg config.Config) {
	var download int64
	if cfg.FetchMode == config.FetchDownload {
		dc := objstore.DefaultDownloaderConfig()
		download = dc.PartSize * int64(dc.Concurrency)
	}

	fp := memdiag.EstimateFootprint(cfg.Workers, cfg.MaxLineBytes, download)
	if !fp.Fits {
		logging.L().Warn().
			Int("workers", cfg.Workers).
			Str("worst_case", humanfmt.Bytes(int64(fp.Total))).
			Str("system_memory", humanfmt.Bytes(int64(fp.System))).
			Msg("worker buffers may exceed half of system memory; lower --workers or --max-line-bytes")
	}
}

func runList(ctx context.Context, cfg config.Config, out io.Writer) error {
	lister, _, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	opts := logscan.SurveyOptions{
		Bucket:   cfg.Bucket,
		Prefix:   cfg.Prefix,
		Suffix:   cfg.Suffix,
		PageSize: int(cfg.PageSize),
	}
	if cfg.FetchMode == config.FetchDownload {
		opts.PartSize = objstore.DefaultDownloaderConfig().PartSize
	}
	if cfg.PriceTable != "" {
		pt, err := pricing.LoadPriceTable(cfg.PriceTable)
		if err != nil {
			return err
		}
		opts.Prices = &pt
	}

	sum, err := logscan.Survey(ctx, lister, opts)
	if err != nil {
		return err
	}
	return report.WriteSurvey(out, sum, cfg.ReportFormat())
}

// openStore is replaced in tests.
var openStore = openS3

// openS3 builds the coordinator's lister and a factory that gives every
// worker its own client built from the same immutable settings.
func openS3(ctx context.Context, cfg config.Config) (objstore.Lister, logscan.GetterFactory, error) {
	storeCfg := cfg.StoreConfig()

	lister, err := objstore.NewClient(ctx, storeCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create S3 client: %w", err)
	}

	fetchMode := cfg.FetchMode
	factory := func(ctx context.Context, _ int) (objstore.Getter, error) {
		client, err := objstore.NewClient(ctx, storeCfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 client: %w", err)
		}
		if fetchMode == config.FetchDownload {
			return objstore.NewDownloader(client.S3(), objstore.DefaultDownloaderConfig()), nil
		}
		return client, nil
	}
	return lister, factory, nil
}
