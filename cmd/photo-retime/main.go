package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quidome/photo-retime/pkg/batch"
	"github.com/quidome/photo-retime/pkg/config"
	"github.com/quidome/photo-retime/pkg/createdat"
	"github.com/quidome/photo-retime/pkg/exiftool"
	"github.com/quidome/photo-retime/pkg/logx"
	"github.com/quidome/photo-retime/pkg/plan"
	"github.com/quidome/photo-retime/pkg/scan"
)

const version = "0.1.0"

type options struct {
	configFile string
	verbose    bool
	timezone   string
	noActivity bool

	dryRun       bool
	exiftoolPath string
	stayOpen     bool
	timeout      time.Duration
	checkContent bool
	strict       bool
}

// openRunner starts the exiftool backend selected by cfg. Tests replace it.
var openRunner = func(cfg *config.Config) (exiftool.Runner, func() error, error) {
	if cfg.StayOpen {
		r, err := exiftool.NewStayOpenRunner(cfg.ExiftoolPath)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}

	if _, err := exiftool.LookPath(cfg.ExiftoolPath); err != nil {
		return nil, nil, err
	}
	return exiftool.ExecRunner{Binary: cfg.ExiftoolPath}, func() error { return nil }, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// a second signal terminates the process
	go func() {
		<-ctx.Done()
		stop()
	}()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "photo-retime [directory]",
		Short: "Write capture timestamps from Procare filenames into photo metadata",
		Long: `photo-retime reads the Unix epoch encoded in Procare export filenames
(img_<epoch>_photo.jpg, img_<epoch>_activity.jpg) and writes the local capture time and
UTC offset into the EXIF DateTime* and OffsetTime* fields with exiftool.

Files are handled one at a time; a file that fails is reported and the batch continues.`,
		Version:      version,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetime(cmd, opts, args[0])
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&opts.timezone, "tz", "", "IANA time zone for the written timestamps (default: local zone)")
	rootCmd.PersistentFlags().BoolVar(&opts.noActivity, "no-activity", false, "skip img_*_activity.jpg files")

	rootCmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "show the values without writing them")
	rootCmd.Flags().StringVar(&opts.exiftoolPath, "exiftool", "", "path to the exiftool binary")
	rootCmd.Flags().BoolVar(&opts.stayOpen, "stay-open", false, "reuse one exiftool process for all writes")
	rootCmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "time limit per exiftool invocation (0 = none)")
	rootCmd.Flags().BoolVar(&opts.checkContent, "check-type", false, "skip files whose content is not JPEG")
	rootCmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with an error when any file fails")

	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newInspectCmd(opts))

	return rootCmd
}

// loadConfig reads the config file, if any, and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if flags.Changed("tz") {
		cfg.Timezone = opts.timezone
	}
	if flags.Changed("no-activity") {
		cfg.IncludeActivity = !opts.noActivity
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}
	if flags.Changed("exiftool") {
		cfg.ExiftoolPath = opts.exiftoolPath
	}
	if flags.Changed("stay-open") {
		cfg.StayOpen = opts.stayOpen
	}
	if flags.Changed("timeout") {
		cfg.ToolTimeout = opts.timeout
	}
	if flags.Changed("check-type") {
		cfg.CheckContent = opts.checkContent
	}
	if flags.Changed("strict") {
		cfg.Strict = opts.strict
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runRetime(cmd *cobra.Command, opts *options, dir string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	log := logx.New(cmd.ErrOrStderr(), cfg.Verbose)
	defer func() { _ = log.Sync() }()

	batchOpts := batch.Options{
		Location:     loc,
		Scan:         scan.Options{MaxDepth: 0, Patterns: cfg.Patterns()},
		DryRun:       cfg.DryRun,
		CheckContent: cfg.CheckContent,
		Out:          cmd.OutOrStdout(),
		Logger:       log,
	}

	if !cfg.DryRun {
		runner, closeRunner, err := openRunner(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeRunner(); err != nil {
				log.Warn("closing exiftool", zap.Error(err))
			}
		}()
		batchOpts.Writer = exiftool.NewWriter(runner, exiftool.Options{Timeout: cfg.ToolTimeout, Logger: log})
	}

	log.Debug("starting batch",
		zap.String("directory", dir),
		zap.String("timezone", loc.String()),
		zap.Strings("patterns", batchOpts.Scan.Patterns),
		zap.Bool("dry_run", cfg.DryRun))

	summary, err := batch.Run(cmd.Context(), dir, batchOpts)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		cmd.PrintErrf("matched %d, written %d, failed %d\n", summary.Matched, summary.Written, summary.Failed)
	}
	if cfg.Strict && summary.HasFailures() {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Matched)
	}
	return nil
}

type jsonPlanned struct {
	Path          string    `json:"path"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	ModTime       time.Time `json:"mod_time"`
	Token         string    `json:"token,omitempty"`
	DateTime      string    `json:"datetime,omitempty"`
	Offset        string    `json:"offset,omitempty"`
	Error         string    `json:"error,omitempty"`
}

func newScanCmd(opts *options) *cobra.Command {
	var asJSON bool

	scanCmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "List the Procare files of a directory",
		Long:  "List the files that would be processed, relative to the directory, optionally with the values that would be written.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			scanOpts := scan.DefaultOptions()
			scanOpts.Patterns = cfg.Patterns()

			records, err := scan.ScanRecords(os.DirFS(dir), ".", scanOpts)
			if err != nil {
				return err
			}

			if !asJSON {
				for _, r := range records {
					cmd.Println(r.Path)
				}
				if cfg.Verbose {
					cmd.PrintErrf("found %d files\n", len(records))
				}
				return nil
			}

			paths := make([]string, 0, len(records))
			for _, r := range records {
				paths = append(paths, r.Path)
			}

			out := make([]jsonPlanned, 0, len(records))
			for i, op := range plan.Plan(paths, loc) {
				r := records[i]
				jp := jsonPlanned{
					Path:          r.Path,
					FileSizeBytes: r.FileSizeBytes,
					ModTime:       r.ModTime,
					Token:         op.Stamp.Token,
					DateTime:      op.DateTime,
					Offset:        op.Offset,
				}
				if op.Err != nil {
					jp.Error = op.Err.Error()
				}
				out = append(out, jp)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	scanCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON records with the planned values")

	return scanCmd
}

type jsonInspection struct {
	Path     string `json:"path"`
	Filename struct {
		DateTime string `json:"datetime,omitempty"`
		Offset   string `json:"offset,omitempty"`
		Error    string `json:"error,omitempty"`
	} `json:"filename"`
	Embedded    string `json:"embedded,omitempty"`
	EmbeddedTag string `json:"embedded_tag,omitempty"`
}

func newInspectCmd(opts *options) *cobra.Command {
	var asJSON bool

	inspectCmd := &cobra.Command{
		Use:   "inspect [directory]",
		Short: "Compare filename timestamps with the embedded ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			fsys := os.DirFS(dir)
			scanOpts := scan.DefaultOptions()
			scanOpts.Patterns = cfg.Patterns()

			matches, err := scan.Scan(fsys, ".", scanOpts)
			if err != nil {
				return err
			}

			results := make([]jsonInspection, 0, len(matches))
			for _, m := range matches {
				detail, err := createdat.Inspect(fsys, m, createdat.Options{Location: loc})
				if err != nil {
					return fmt.Errorf("inspect %s: %w", filepath.Join(dir, m), err)
				}

				var ji jsonInspection
				ji.Path = m
				if detail.FilenameErr != nil {
					ji.Filename.Error = detail.FilenameErr.Error()
				} else {
					ji.Filename.DateTime = createdat.ExifString(detail.Filename.Time)
					ji.Filename.Offset = createdat.OffsetString(detail.Filename.Time)
				}
				if !detail.Embedded.IsZero() {
					ji.Embedded = createdat.ExifString(detail.Embedded)
					ji.EmbeddedTag = detail.EmbeddedTag
				}
				results = append(results, ji)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			for _, ji := range results {
				filename := ji.Filename.DateTime + " " + ji.Filename.Offset
				if ji.Filename.Error != "" {
					filename = "error: " + ji.Filename.Error
				}
				embedded := "none"
				if ji.Embedded != "" {
					embedded = ji.Embedded + " (" + ji.EmbeddedTag + ")"
				}
				cmd.Printf("%s\n  filename: %s\n  embedded: %s\n", ji.Path, filename, embedded)
			}
			return nil
		},
	}

	inspectCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON records")

	return inspectCmd
}
