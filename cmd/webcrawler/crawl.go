package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/engine"
	"github.com/nao1215/webcrawler/internal/extract"
	"github.com/nao1215/webcrawler/internal/fetcher"
	"github.com/nao1215/webcrawler/internal/loader"
	"github.com/nao1215/webcrawler/internal/log"
	"github.com/nao1215/webcrawler/internal/model"
	"github.com/nao1215/webcrawler/internal/report"
	"github.com/nao1215/webcrawler/internal/robots"
	"github.com/nao1215/webcrawler/internal/scheduler"
	"github.com/nao1215/webcrawler/internal/sink"
	"github.com/spf13/cobra"
)

// errInvalidHeader is returned for a --header value without a colon.
var errInvalidHeader = errors.New("invalid header: expected \"Name: value\"")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl web pages and write the extracted content",
		Long: `Crawl fetches one URL (--url) or every URL listed in a file (--file)
and writes the titles, paragraphs, links and images of each page to
OUTPUT.FORMAT.

URL files may be .csv (a "url" column), .json (a list of URLs or objects
with a "url" key) or plain text with one URL per line.

Examples:
  # Crawl a single page into result.csv
  webcrawler crawl --url https://example.com --output result

  # Crawl a list of pages with 10 workers into result.json
  webcrawler crawl --file urls.txt --output result --format json --workers 10

  # Space requests to the same host by one second and log to a file
  webcrawler crawl --file urls.csv -o out --crawl-delay 1s --log-file crawl.log

Settings can also come from a YAML configuration file (see "webcrawler init").
Flags override values from the file.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	// Targets
	cmd.Flags().StringP("url", "u", "", "Single URL to crawl")
	cmd.Flags().StringP("file", "f", "", "File with URLs to crawl (.csv, .json or one URL per line)")

	// Output
	cmd.Flags().StringP("output", "o", "", "Output file name without extension")
	cmd.Flags().String("format", config.DefaultFormat, "Output format: csv or json")

	// Crawl behavior
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Maximum number of concurrent fetches")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Time limit for each fetch attempt")
	cmd.Flags().Int("max-retries", config.DefaultMaxRetries, "Attempts per URL, including the first")
	cmd.Flags().Bool("ignore-robots", false, "Do not consult robots.txt")
	cmd.Flags().Duration("crawl-delay", 0, "Minimum spacing between requests to the same host")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header and robots.txt agent name")
	cmd.Flags().StringArrayP("header", "H", nil, "Extra request header as \"Name: value\" (repeatable)")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")

	// Logging
	cmd.Flags().String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	cmd.Flags().String("log-file", "", "Also write logs to this file (rotated at 5 MB)")

	// History and display
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data directory)")
	cmd.Flags().Bool("no-progress", false, "Hide the progress bar")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webcrawler.yaml or XDG config directory)")

	cmd.MarkFlagsMutuallyExclusive("url", "file")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := log.New(log.Options{
		Level:   cfg.LogLevel,
		Verbose: getVerboseFlag(cmd),
		File:    cfg.LogFile,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, stopping crawl...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the configuration file and
// the command flags, later sources overriding earlier ones. Only flags the
// user actually set override the file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if found := config.FindConfigFile(configPath); found != "" {
		file, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		cfg.Apply(file)
		cfg.ConfigFilePath = found
	} else if configPath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	if cfg.URL, err = flags.GetString("url"); err != nil {
		return nil, err
	}
	if cfg.InputFile, err = flags.GetString("file"); err != nil {
		return nil, err
	}
	if cfg.OutputName, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	if flags.Changed("format") {
		if cfg.Format, err = flags.GetString("format"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-retries") {
		if cfg.MaxRetries, err = flags.GetInt("max-retries"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("ignore-robots") {
		ignore, err := flags.GetBool("ignore-robots")
		if err != nil {
			return nil, err
		}
		cfg.RespectRobots = !ignore
	}
	if flags.Changed("crawl-delay") {
		if cfg.CrawlDelay, err = flags.GetDuration("crawl-delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("header") {
		headers, err := flags.GetStringArray("header")
		if err != nil {
			return nil, err
		}
		for _, h := range headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("%w: %q", errInvalidHeader, h)
			}
			cfg.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("log-level") {
		if cfg.LogLevel, err = flags.GetString("log-level"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("log-file") {
		if cfg.LogFile, err = flags.GetString("log-file"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return nil, err
		}
		cfg.SaveHistory = !noHistory
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-progress") {
		noProgress, err := flags.GetBool("no-progress")
		if err != nil {
			return nil, err
		}
		cfg.ShowProgress = !noProgress
	}

	return cfg, nil
}

// crawlTargets returns the URLs to crawl and a description of where they
// came from. An unreadable URL file yields no URLs and a logged error; the
// engine then reports that nothing could be crawled.
func crawlTargets(cfg *config.Config, logger *slog.Logger) ([]string, string) {
	if cfg.URL != "" {
		return []string{cfg.URL}, cfg.URL
	}
	urls, err := loader.Load(cfg.InputFile, loader.WithLogger(logger))
	if err != nil {
		logger.Error("failed to load url file", "file", cfg.InputFile, "error", err)
		return nil, cfg.InputFile
	}
	logger.Info("loaded urls", "file", cfg.InputFile, "count", len(urls))
	return urls, cfg.InputFile
}

// newScheduler wires the robots gate, fetcher and extractor into a scheduler.
func newScheduler(cfg *config.Config, logger *slog.Logger) (*scheduler.Scheduler, error) {
	client, err := fetcher.NewHTTPClient(fetcher.ClientConfig{
		ProxyAddress:    cfg.ProxyAddress,
		MaxConnsPerHost: cfg.Workers,
	})
	if err != nil {
		return nil, err
	}

	gate := robots.New(client,
		robots.WithEnabled(cfg.RespectRobots),
		robots.WithUserAgent(cfg.UserAgent),
		robots.WithTimeout(cfg.Timeout),
		robots.WithLogger(logger),
	)
	f := fetcher.New(client,
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithHeaders(cfg.Headers),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithLogger(logger),
	)

	return scheduler.New(gate, f, extract.NewHTML(extract.WithLogger(logger)),
		scheduler.WithConcurrency(cfg.Workers),
		scheduler.WithTimeout(cfg.Timeout),
		scheduler.WithUserAgent(cfg.UserAgent),
		scheduler.WithBackoff(fetcher.NewBackoff(fetcher.WithMaxAttempts(cfg.MaxRetries))),
		scheduler.WithLimiter(fetcher.NewHostLimiter(cfg.CrawlDelay)),
		scheduler.WithLogger(logger),
	), nil
}

// runCrawl executes one crawl run and prints its summary to stdout. The
// progress bar, when enabled, renders on stderr.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	urls, source := crawlTargets(cfg, logger)

	sched, err := newScheduler(cfg, logger)
	if err != nil {
		return err
	}

	var db *database.HistoryDB
	if cfg.SaveHistory {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		logger.Debug("history database opened", "path", db.Path())
	}

	out, err := sink.Open(cfg.OutputPath(), sink.Format(cfg.Format))
	if err != nil {
		return err
	}

	var results sink.Sink = out
	opts := []engine.Option{engine.WithLogger(logger)}

	var (
		runID int64
		hist  *sink.HistorySink
	)
	if db != nil {
		runID, err = db.StartRun(ctx, database.RunInfo{
			Source:     source,
			OutputPath: out.Path(),
			Format:     strings.ToLower(cfg.Format),
		})
		if err != nil {
			return errors.Join(err, out.Finalize())
		}
		hist = sink.NewHistory(ctx, db, runID, logger)
		results = sink.Multi(out, hist)
		opts = append(opts, engine.WithTaskObserver(func(task model.CrawlTask) {
			if task.State == model.TaskSucceeded {
				return
			}
			if err := db.RecordFailure(context.WithoutCancel(ctx), runID, task); err != nil {
				logger.Warn("failed to record failure", "url", task.URL, "error", err)
			}
		}))
	}

	var bar *report.ProgressBar
	if cfg.ShowProgress && cfg.InputFile != "" {
		bar = report.NewProgressBar(stderr, "Crawling")
		opts = append(opts, engine.WithProgress(bar.Update))
	}

	eng := engine.New(sched, results, opts...)

	startTime := time.Now()
	var summary model.Summary
	if cfg.URL != "" {
		summary, err = eng.CrawlOne(ctx, cfg.URL)
	} else {
		summary, err = eng.CrawlBatch(ctx, urls)
	}
	elapsed := time.Since(startTime)

	if bar != nil {
		bar.Stop()
	}

	if db != nil {
		if ferr := db.FinishRun(context.WithoutCancel(ctx), runID, summary); ferr != nil {
			logger.Error("failed to finish run", "run_id", runID, "error", ferr)
		}
		if n := hist.Failures(); n > 0 {
			logger.Warn("history is missing pages of this run", "run_id", runID, "missing", n)
		}
	}

	if perr := printSummary(stdout, out.Path(), runID, summary, elapsed); perr != nil {
		logger.Warn("failed to print summary", "error", perr)
	}
	return err
}

// printSummary writes the outcome table and where the results went.
func printSummary(w io.Writer, outputPath string, runID int64, summary model.Summary, elapsed time.Duration) error {
	if err := report.NewTableWriter(w).WriteSummary(summary); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Wrote %d result(s) to %s in %s\n",
		summary.Written(), outputPath, elapsed.Round(time.Millisecond)); err != nil {
		return err
	}
	if runID > 0 {
		if _, err := fmt.Fprintf(w, "Run #%d recorded (webcrawler history show %d)\n", runID, runID); err != nil {
			return err
		}
	}
	return nil
}
