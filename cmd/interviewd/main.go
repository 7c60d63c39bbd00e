// Package main is the interviewd CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/interviewd/internal/cli"
	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/server"
	"github.com/hyperjump/interviewd/internal/watcher"
	"github.com/hyperjump/interviewd/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/interviewd/config.yaml"
	defaultDataDir    = ".interviewd"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, and when neither exists the built-in defaults rooted at
// ./.interviewd are used. Returns the config and the path that was loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			dataDir, _ := filepath.Abs(defaultDataDir)
			cfg := config.Default(dataDir)
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "sessions":
		runSessions()
	case "transcript":
		runTranscript()
	case "extract":
		runExtract()
	case "rules":
		runRules()
	case "search-rules":
		runSearchRules()
	case "docs":
		runDocs()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("interviewd version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger and initializes components for a direct-access command.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, components
}

func outputFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Inbox.Enabled {
		inbox := watcher.NewInbox(cfg.Inbox.Dir, cfg.Ingestion.AllowedExtensions, components.Indexer, cfg.Server.RequestTimeout,
			watcher.WithDebounce(cfg.Inbox.Debounce), watcher.WithLogger(logger))
		if err := inbox.Start(watchCtx); err != nil {
			logger.Fatal("failed to start inbox watcher", zap.Error(err))
		}
		inbox.SyncExistingFiles()
		logger.Info("inbox watching", zap.String("dir", inbox.Root()))
	}

	srv := server.NewServer(
		components.Interviews,
		components.Indexer,
		components.Storage,
		cfg,
		logger,
		server.WithRetriever(components.Retriever),
		server.WithRuleSearch(components.RuleSearch),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sessionID := fs.String("session", "", "session id the documents belong to")
	_ = fs.Parse(os.Args[2:])

	if *sessionID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: interviewd ingest --session ID <file>...")
		os.Exit(1)
	}
	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	failed := 0
	for _, path := range fs.Args() {
		res, err := components.Indexer.IngestFile(context.Background(), path, *sessionID, models.ExpertInfo{})
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed++
			continue
		}
		if !res.Success {
			fmt.Printf("%s: %s\n", path, res.Error)
			failed++
			continue
		}
		fmt.Printf("%s: %d/%d chunks stored (document %s)\n", path, res.ChunksProcessed, res.TotalChunks, res.DocumentID)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runSessions() {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	offset := fs.Int("offset", 0, "number of sessions to skip")
	limit := fs.Int("limit", 50, "maximum sessions to list")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := outputFormat(*output)
	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	sessions, err := components.Interviews.List(context.Background(), *offset, *limit)
	if err != nil {
		fatalf("List sessions failed: %v", err)
	}
	if err := cli.WriteSessions(os.Stdout, sessions, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runTranscript() {
	fs := flag.NewFlagSet("transcript", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sessionID := fs.String("session", "", "session id")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *sessionID == "" {
		fmt.Println("Usage: interviewd transcript --session ID")
		os.Exit(1)
	}
	format := outputFormat(*output)
	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	sess, err := components.Interviews.Get(context.Background(), *sessionID)
	if err != nil {
		fatalf("Load session failed: %v", err)
	}
	if err := cli.WriteTranscript(os.Stdout, sess, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sessionID := fs.String("session", "", "session id")
	mode := fs.String("mode", "", "extraction mode: structured or text (default from config)")
	_ = fs.Parse(os.Args[2:])

	if *sessionID == "" {
		fmt.Println("Usage: interviewd extract --session ID [--mode text|structured]")
		os.Exit(1)
	}
	cfg, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Extraction.Timeout)
	defer cancel()
	res, err := components.Interviews.Reextract(ctx, *sessionID, *mode)
	if err != nil {
		fatalf("Extraction failed: %v", err)
	}
	fmt.Printf("Extracted %d rule(s) (%d new) from session %s using %s mode\n", len(res.Rules), res.Inserted, res.SessionID, res.Mode)
	if res.MirrorPath != "" {
		fmt.Printf("Mirror: %s\n", res.MirrorPath)
	}
}

func runRules() {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sessionID := fs.String("session", "", "only rules of this session")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := outputFormat(*output)
	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	var (
		list []*models.ExtractedRule
		err  error
	)
	if *sessionID != "" {
		list, err = components.Interviews.Rules(context.Background(), *sessionID)
	} else {
		list, err = components.Storage.ListAllRules(context.Background())
	}
	if err != nil {
		fatalf("List rules failed: %v", err)
	}
	if err := cli.WriteRules(os.Stdout, list, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags that appear after the query to the front so that
// flag.Parse sees them; the flag package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: interviewd search-rules [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Queries that match nothing are retried once with a spelling correction.

Examples:
  interviewd search-rules bedtime routine
  interviewd search-rules --session 3 homework
  interviewd search-rules --server "" --output json praise   # direct storage access
`)
}

func runSearchRules() {
	fs := flag.NewFlagSet("search-rules", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage when server is not running)")
	sessionID := fs.String("session", "", "only rules of this session")
	limit := fs.Int("limit", 10, "number of results")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := outputFormat(*output)
	query := &models.RuleSearchQuery{Query: queryStr, SessionID: *sessionID, Limit: *limit}

	if *serverURL != "" {
		// the server holds the rule index lock
		resp, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
		if err := cli.WriteRuleSearch(os.Stdout, resp, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	resp, err := components.RuleSearch.Search(context.Background(), query)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteRuleSearch(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func searchViaHTTP(serverURL string, query *models.RuleSearchQuery) (*models.RuleSearchResponse, error) {
	params := url.Values{}
	params.Set("q", query.Query)
	if query.SessionID != "" {
		params.Set("session_id", query.SessionID)
	}
	if query.Limit > 0 {
		params.Set("limit", fmt.Sprint(query.Limit))
	}
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/rules/search?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out models.RuleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runDocs() {
	fs := flag.NewFlagSet("docs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sessionID := fs.String("session", "", "session id")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *sessionID == "" {
		fmt.Println("Usage: interviewd docs --session ID")
		os.Exit(1)
	}
	format := outputFormat(*output)
	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	stats, err := components.Indexer.Stats(context.Background(), *sessionID)
	if err != nil {
		fatalf("Document stats failed: %v", err)
	}
	if err := cli.WriteDocumentStats(os.Stdout, stats, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runConfig() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: interviewd config <init|show> [flags]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dataDir := fs.String("data-dir", defaultDataDir, "data directory for a new config")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[3:])

	switch sub {
	case "init":
		if err := initConfig(*configPath, *dataDir, *force); err != nil {
			fatalf("Config init failed: %v", err)
		}
		fmt.Printf("Config written: %s\n", *configPath)
	case "show":
		cfg, path, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		if err := writeConfig(os.Stdout, cfg, path); err != nil {
			fatalf("Output failed: %v", err)
		}
	default:
		fmt.Printf("Unknown config subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// initConfig writes a default config rooted at dataDir to path.
func initConfig(path, dataDir string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return err
	}
	cfg := config.Default(abs)
	// credentials stay in the environment
	cfg.LLM.APIKey = ""
	cfg.Embedding.APIKey = ""
	return config.Save(path, cfg)
}

// writeConfig prints the effective config with credentials masked.
func writeConfig(w io.Writer, cfg *config.Config, path string) error {
	masked := *cfg
	masked.LLM.APIKey = maskSecret(cfg.LLM.APIKey)
	masked.Embedding.APIKey = maskSecret(cfg.Embedding.APIKey)
	if path == "" {
		path = "built-in defaults"
	}
	fmt.Fprintf(w, "# source: %s\n", path)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&masked); err != nil {
		return err
	}
	return enc.Close()
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func printUsage() {
	fmt.Println(`interviewd - expert interview and rule extraction service

Usage:
  interviewd server [flags]                       Start the HTTP server
  interviewd ingest --session ID <file>...        Ingest documents for a session
  interviewd sessions [flags]                     List interview sessions
  interviewd transcript --session ID              Print a session transcript
  interviewd extract --session ID [--mode MODE]   Re-run rule extraction for a session
  interviewd rules [--session ID] [--output FMT]  List extracted rules
  interviewd search-rules [flags] <query>         Full-text search over rules
  interviewd docs --session ID                    Show a session's documents
  interviewd config <init|show>                   Write or print the config
  interviewd version                              Show version
  interviewd help                                 Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/interviewd/config.yaml,
                     falling back to ./config.yaml, then built-in defaults)
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Search Flags:
  --server string    Server URL (default: http://localhost:8000). Use --server "" for direct storage.
  --session string   Only rules of this session
  --limit int        Number of results (default: 10)

Config Flags:
  --data-dir string  Data directory for config init (default: .interviewd)
  --force            Overwrite an existing config file

Credentials are read from INTERVIEWD_LLM_API_KEY (or OPENAI_API_KEY); a .env file in the
working directory is loaded first.

Examples:
  interviewd config init --config ./config.yaml
  interviewd server --config ./config.yaml
  interviewd ingest --session 3 handbook.pdf routines.docx
  interviewd extract --session 3 --mode text
  interviewd rules --session 3 --output json
  interviewd search-rules bedtime routine`)
}
