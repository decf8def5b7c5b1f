package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wharflab/gauge/internal/config"
	"github.com/wharflab/gauge/internal/heuristic"
	"github.com/wharflab/gauge/internal/mappings"
	"github.com/wharflab/gauge/internal/match"
	"github.com/wharflab/gauge/internal/oracle"
	"github.com/wharflab/gauge/internal/registry"
	"github.com/wharflab/gauge/internal/reporter"
	"github.com/wharflab/gauge/internal/scan"
	"github.com/wharflab/gauge/internal/upstream"
)

// Exit codes
const (
	ExitSuccess     = 0 // Every input image matched at or above min-confidence
	ExitUnmatched   = 1 // One or more images stayed unmatched
	ExitConfigError = 2 // Config, input, or output error
	ExitNoInput     = 3 // No images given
)

const (
	oracleCacheFile     = "llm_cache.db"
	oracleTelemetryFile = "llm_telemetry.jsonl"
)

func matchCommand() *cli.Command {
	return &cli.Command{
		Name:      "match",
		Usage:     "Resolve images to Chainguard equivalents",
		ArgsUsage: "[IMAGE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: auto-discover)",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Read images from file, one per line (\"-\" for stdin)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv, json, markdown",
				Sources: cli.EnvVars("GAUGE_OUTPUT_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path: stdout, stderr, or file path",
				Sources: cli.EnvVars("GAUGE_OUTPUT_PATH"),
			},
			&cli.StringFlag{
				Name:    "unmatched-output",
				Usage:   "Write unmatched images to a separate file",
				Sources: cli.EnvVars("GAUGE_OUTPUT_UNMATCHED_PATH"),
			},
			&cli.FloatFlag{
				Name:    "min-confidence",
				Usage:   "Minimum confidence for a match to count",
				Sources: cli.EnvVars("GAUGE_MATCHING_MIN_CONFIDENCE"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of concurrent match workers",
				Sources: cli.EnvVars("GAUGE_MATCHING_WORKERS"),
			},
			&cli.StringFlag{
				Name:    "target",
				Usage:   "Target registry matched images resolve under",
				Sources: cli.EnvVars("GAUGE_REGISTRY_TARGET"),
			},
			&cli.StringFlag{
				Name:    "mappings",
				Usage:   "Path to the manual mapping table",
				Sources: cli.EnvVars("GAUGE_MAPPINGS_MANUAL_FILE"),
			},
			&cli.StringFlag{
				Name:    "community-file",
				Usage:   "Use a local community mapping file instead of fetching",
				Sources: cli.EnvVars("GAUGE_MAPPINGS_COMMUNITY_FILE"),
			},
			&cli.BoolFlag{
				Name:  "no-upstream",
				Usage: "Disable public-upstream discovery for private images",
			},
			&cli.BoolFlag{
				Name:    "allow-unverified",
				Usage:   "Allow unverified best-guess upstream candidates",
				Sources: cli.EnvVars("GAUGE_UPSTREAM_ALLOW_UNVERIFIED"),
			},
			&cli.BoolFlag{
				Name:    "oracle",
				Usage:   "Enable the LLM matching tier",
				Sources: cli.EnvVars("GAUGE_ORACLE_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "oracle-model",
				Usage:   "Model used by the LLM matching tier",
				Sources: cli.EnvVars("GAUGE_ORACLE_MODEL"),
			},
			&cli.BoolFlag{
				Name:  "no-learn",
				Usage: "Do not promote successful matches into the manual table",
			},
			&cli.StringFlag{
				Name:    "suggest-dir",
				Usage:   "Write contribution-ready mapping suggestions to this directory",
				Sources: cli.EnvVars("GAUGE_OUTPUT_SUGGEST_DIR"),
			},
			&cli.StringFlag{
				Name:    "cache-dir",
				Usage:   "Cache directory (community table, oracle cache)",
				Sources: cli.EnvVars("GAUGE_CACHE_DIR"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: runMatch,
	}
}

func runMatch(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("verbose") {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := loadMatchConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.Exit("", ExitConfigError)
	}

	images, err := collectImages(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.Exit("", ExitConfigError)
	}
	if len(images) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no images given (pass arguments or --file)")
		return cli.Exit("", ExitNoInput)
	}

	format, err := reporter.ParseFormat(cfg.Output.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.Exit("", ExitConfigError)
	}

	cacheDir, err := cfg.ResolveCacheDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.Exit("", ExitConfigError)
	}

	engine, learner, cleanup, err := buildEngine(ctx, cfg, cacheDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.Exit("", ExitConfigError)
	}
	defer cleanup()

	start := time.Now()
	batch := engine.MatchAll(ctx, images, match.BatchOptions{
		Workers:       cfg.Matching.Workers,
		MinConfidence: cfg.Matching.MinConfidence,
		Learner:       learner,
	})
	log.WithFields(log.Fields{
		"images":   len(images),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("matching finished")

	if err := writeReport(cfg, format, batch); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.Exit("", ExitConfigError)
	}

	if cfg.Output.UnmatchedPath != "" {
		if err := writeUnmatched(cfg.Output.UnmatchedPath, batch.Unmatched); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return cli.Exit("", ExitConfigError)
		}
	}

	if learner != nil {
		if n := learner.Flush(); n > 0 {
			log.WithFields(log.Fields{
				"count": n,
				"file":  cfg.Mappings.ManualFile,
			}).Info("learned new mappings")
		}
		if cfg.Output.SuggestDir != "" {
			path, err := mappings.WriteSuggestions(cfg.Output.SuggestDir, learner.Learned())
			if err != nil {
				log.WithError(err).Warn("failed to write mapping suggestions")
			} else if path != "" {
				log.WithField("file", path).Info("wrote mapping suggestions")
			}
		}
	}

	if len(batch.Unmatched) > 0 {
		return cli.Exit("", ExitUnmatched)
	}
	return nil
}

// loadMatchConfig loads config (explicit file or discovery) and applies
// flag overrides on top.
func loadMatchConfig(cmd *cli.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("format") {
		cfg.Output.Format = cmd.String("format")
	}
	if cmd.IsSet("output") {
		cfg.Output.Path = cmd.String("output")
	}
	if cmd.IsSet("unmatched-output") {
		cfg.Output.UnmatchedPath = cmd.String("unmatched-output")
	}
	if cmd.IsSet("suggest-dir") {
		cfg.Output.SuggestDir = cmd.String("suggest-dir")
	}
	if cmd.IsSet("min-confidence") {
		cfg.Matching.MinConfidence = cmd.Float("min-confidence")
	}
	if cmd.IsSet("workers") {
		cfg.Matching.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("target") {
		cfg.Registry.Target = cmd.String("target")
	}
	if cmd.IsSet("mappings") {
		cfg.Mappings.ManualFile = cmd.String("mappings")
	}
	if cmd.IsSet("community-file") {
		cfg.Mappings.CommunityFile = cmd.String("community-file")
	}
	if cmd.Bool("no-upstream") {
		cfg.Upstream.Enabled = false
	}
	if cmd.IsSet("allow-unverified") {
		cfg.Upstream.AllowUnverified = cmd.Bool("allow-unverified")
	}
	if cmd.IsSet("oracle") {
		cfg.Oracle.Enabled = cmd.Bool("oracle")
	}
	if cmd.IsSet("oracle-model") {
		cfg.Oracle.Model = cmd.String("oracle-model")
	}
	if cmd.Bool("no-learn") {
		cfg.Matching.Learn = false
	}
	if cmd.IsSet("cache-dir") {
		cfg.CacheDir = cmd.String("cache-dir")
	}
	return cfg, nil
}

// collectImages gathers input images from arguments and the --file list,
// preserving order. References are normalized so bare names carry an
// explicit tag before matching.
func collectImages(cmd *cli.Command) ([]string, error) {
	var images []string
	for _, arg := range cmd.Args().Slice() {
		images = append(images, scan.NormalizeImage(arg))
	}

	path := cmd.String("file")
	if path == "" {
		return images, nil
	}

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading image list: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		images = append(images, scan.NormalizeImage(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading image list: %w", err)
	}
	return images, nil
}

// buildEngine wires the mapping tables, registry checkers, and optional
// tiers into a match engine. The returned cleanup closes the oracle cache.
func buildEngine(
	ctx context.Context,
	cfg *config.Config,
	cacheDir string,
) (*match.Engine, *match.Learner, func(), error) {
	cleanup := func() {}

	var checker registry.Checker = registry.NewRetryChecker(registry.NewCraneChecker())
	var catalog *registry.CatalogChecker
	if cfg.Registry.CatalogEndpoint != "" {
		catalog = registry.NewCatalogChecker(
			cfg.Registry.CatalogEndpoint,
			cfg.Registry.CatalogToken,
			cfg.Registry.Target,
			checker,
		)
		checker = catalog
	}
	checker = registry.Memoized(checker)

	store := mappings.NewCommunityStore(cacheDir)
	if cfg.Mappings.CommunityURL != "" {
		store.URL = cfg.Mappings.CommunityURL
	}
	if cfg.Mappings.CommunityFile != "" {
		store.LocalFile = cfg.Mappings.CommunityFile
	}
	if cfg.Mappings.MaxAgeHours > 0 {
		store.MaxAge = time.Duration(cfg.Mappings.MaxAgeHours) * time.Hour
	}
	community, err := store.Load(ctx)
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("loading community mappings: %w", err)
	}

	manual, err := mappings.LoadManual(cfg.Mappings.ManualFile)
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("loading manual mappings: %w", err)
	}

	engineCfg := match.Config{
		TargetRegistry:  cfg.Registry.Target,
		Community:       community,
		Manual:          manual,
		Heuristic:       heuristic.NewMatcher(cfg.Registry.Target, checker),
		OracleThreshold: cfg.Oracle.Threshold,
		Checker:         checker,
	}

	if cfg.Upstream.Enabled {
		var upstreamManual *mappings.Table
		if cfg.Upstream.ManualFile != "" {
			upstreamManual, err = mappings.LoadManual(cfg.Upstream.ManualFile)
			if err != nil {
				return nil, nil, cleanup, fmt.Errorf("loading upstream mappings: %w", err)
			}
		}
		engineCfg.Upstream = upstream.NewFinder(upstreamManual, checker, upstream.Options{
			MinConfidence:   cfg.Upstream.MinConfidence,
			AllowUnverified: cfg.Upstream.AllowUnverified,
		})
	}

	if cfg.Oracle.Enabled {
		oracleMatcher, closeCache := buildOracle(ctx, cfg, cacheDir, catalog)
		engineCfg.Oracle = oracleMatcher
		cleanup = closeCache
	}

	var learner *match.Learner
	if cfg.Matching.Learn {
		learner = match.NewLearner(cfg.Mappings.ManualFile, cfg.Matching.LearnThreshold)
	}

	return match.NewEngine(engineCfg), learner, cleanup, nil
}

// buildOracle assembles the LLM tier. A missing API key disables the tier
// with a warning instead of failing the run; cache open failures degrade
// to uncached operation.
func buildOracle(
	ctx context.Context,
	cfg *config.Config,
	cacheDir string,
	catalog *registry.CatalogChecker,
) (*oracle.Matcher, func()) {
	cleanup := func() {}

	apiKey := cfg.Oracle.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		log.Warn("oracle enabled but no API key configured, skipping oracle tier")
		return nil, cleanup
	}

	cache, err := oracle.OpenCache(filepath.Join(cacheDir, oracleCacheFile))
	if err != nil {
		log.WithError(err).Warn("oracle cache unavailable, running uncached")
		cache = nil
	} else {
		cleanup = func() {
			if err := cache.Close(); err != nil {
				log.WithError(err).Debug("closing oracle cache")
			}
		}
	}

	var names []string
	if catalog != nil {
		names = catalog.CatalogNames(ctx)
	}

	telemetry := oracle.NewTelemetry(filepath.Join(cacheDir, oracleTelemetryFile))
	return oracle.NewMatcher(
		oracle.NewAnthropicClient(apiKey),
		cache, telemetry, names,
		oracle.Options{
			Model:          cfg.Oracle.Model,
			TargetRegistry: cfg.Registry.Target,
			Threshold:      cfg.Oracle.Threshold,
		},
	), cleanup
}

func writeReport(cfg *config.Config, format reporter.Format, batch match.BatchResult) error {
	var w io.Writer
	switch cfg.Output.Path {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	rep, err := reporter.New(reporter.Options{
		Format:        format,
		Writer:        w,
		MinConfidence: cfg.Matching.MinConfidence,
	})
	if err != nil {
		return err
	}
	return rep.Report(batch)
}

func writeUnmatched(path string, unmatched []string) error {
	var b strings.Builder
	for _, image := range unmatched {
		b.WriteString(image)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing unmatched list: %w", err)
	}
	return nil
}
