// Package main is the ClinBrief CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/agent"
	"github.com/clinbrief/clinbrief/internal/config"
	"github.com/clinbrief/clinbrief/internal/embedding"
	"github.com/clinbrief/clinbrief/internal/indexer"
	"github.com/clinbrief/clinbrief/internal/lexical"
	"github.com/clinbrief/clinbrief/internal/llm"
	"github.com/clinbrief/clinbrief/internal/metrics"
	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/internal/rerank"
	"github.com/clinbrief/clinbrief/internal/search"
	"github.com/clinbrief/clinbrief/internal/server"
	"github.com/clinbrief/clinbrief/internal/storage"
	"github.com/clinbrief/clinbrief/internal/vector"
	"github.com/clinbrief/clinbrief/internal/watcher"
	"github.com/clinbrief/clinbrief/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/clinbrief/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory so development runs pick up the
// project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "research":
		runResearch()
	case "ingest":
		runIngest()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("clinbrief version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// Components holds the initialized subsystems for the server command.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Vectors  vector.Index
	Lexical  lexical.Index
	Engine   *search.Engine
	Indexer  *indexer.Indexer
	Pipeline *agent.Pipeline
}

// Close releases all component resources.
func (c *Components) Close() {
	if c.Lexical != nil {
		_ = c.Lexical.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})

	vectors, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		// A missing snapshot is a fresh start; anything else means the
		// file is corrupt and must not be silently rebuilt over.
		if loadErr := vectors.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			return nil, fmt.Errorf("failed to load vector index from %s: %w",
				cfg.Storage.VectorIndexPath, loadErr)
		}
	}

	lex, err := lexical.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lexical index: %w", err)
	}

	var reranker *rerank.Reranker
	if cfg.Rerank.Enabled {
		reranker = rerank.NewReranker(rerank.NewHTTPScorer(cfg.Rerank.BaseURL), store, cfg.Rerank.MaxText)
	}

	engine := search.NewEngine(lex, vectors, embedder, reranker, store, search.Options{
		RRFConstant:     cfg.Retrieval.RRFConstant,
		OverFetchFactor: cfg.Retrieval.OverFetchFactor,
	}, logger)

	idxOpts := []indexer.IndexerOption{}
	if debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	idx := indexer.NewIndexer(store, embedder, vectors, lex, idxOpts...)

	generator := llm.NewOpenAIGenerator(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	pipeline := agent.NewPipeline(
		agent.NewExpander(generator, float32(cfg.LLM.ExpanderTemp), logger),
		agent.NewSummarizer(generator, float32(cfg.LLM.SummarizerTemp), logger),
		agent.NewWriter(generator, float32(cfg.LLM.WriterTemp), logger),
		engine,
		logger,
	)

	return &Components{
		Storage:  store,
		Embedder: embedder,
		Vectors:  vectors,
		Lexical:  lex,
		Engine:   engine,
		Indexer:  idx,
		Pipeline: pipeline,
	}, nil
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
		zap.Bool("debug", debugMode))

	metrics.Register()

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		idx := components.Indexer
		watchSvc = watcher.NewWatcher(cfg.Watch.Directories, func(path string) {
			if _, err := idx.IndexFile(context.Background(), path); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		}, logger)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(components.Engine, components.Indexer, components.Pipeline,
		components.Storage, cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
	if watchSvc != nil {
		watchSvc.Stop()
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Vectors.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.Error(err))
		}
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	topK := fs.Int("top-k", 0, "number of results (0 = server default)")
	rerankFlag := fs.Bool("rerank", false, "apply pairwise reranking")
	jsonOut := fs.Bool("json", false, "print raw JSON response")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: clinbrief search [flags] <query>")
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")

	body := map[string]interface{}{
		"query":         query,
		"top_k":         *topK,
		"use_reranking": *rerankFlag,
	}
	var result models.RetrievalResult
	if err := postJSON(*serverURL+"/api/v1/search", body, &result, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if *jsonOut {
		return
	}
	if result.Degraded {
		fmt.Println("(degraded: one or more retrieval signals unavailable)")
	}
	for i, r := range result.Results {
		fmt.Printf("%2d. [%.4f] %s (%s)\n", i+1, r.FusedScore, r.Title, r.DocumentID)
		if r.Snippet != "" {
			fmt.Printf("    %s\n", r.Snippet)
		}
	}
	fmt.Printf("%d results in %dms\n", len(result.Results), result.QueryTimeMS)
}

func runResearch() {
	fs := flag.NewFlagSet("research", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	topK := fs.Int("top-k", 0, "number of sources (0 = server default)")
	rerankFlag := fs.Bool("rerank", true, "apply pairwise reranking")
	jsonOut := fs.Bool("json", false, "print raw JSON response")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: clinbrief research [flags] <topic>")
		os.Exit(1)
	}
	topic := strings.Join(fs.Args(), " ")

	body := map[string]interface{}{
		"topic":         topic,
		"top_k":         *topK,
		"use_reranking": *rerankFlag,
	}
	var report agent.ResearchReport
	if err := postJSON(*serverURL+"/api/v1/research", body, &report, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "Research failed: %v\n", err)
		os.Exit(1)
	}
	if *jsonOut {
		return
	}
	fmt.Printf("Topic: %s\n\n", report.Topic)
	if report.Brief != nil {
		fmt.Println(report.Brief.BriefText)
		fmt.Printf("\n(%d words, %d claims, %d risk flags, %d sources, %dms)\n",
			report.Brief.WordCount, len(report.Brief.Claims), len(report.Brief.RiskFlags),
			len(report.Results), report.ElapsedMS)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: clinbrief ingest [flags] <file.json|directory> ...")
		os.Exit(1)
	}

	total := 0
	for _, arg := range fs.Args() {
		n, err := ingestPath(*serverURL, arg)
		total += n
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest %s failed: %v\n", arg, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Ingested %d documents\n", total)
}

func ingestPath(serverURL, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		total := 0
		err := filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() || strings.ToLower(filepath.Ext(p)) != ".json" {
				return walkErr
			}
			n, ingestErr := ingestFile(serverURL, p)
			total += n
			return ingestErr
		})
		return total, err
	}
	return ingestFile(serverURL, path)
}

func ingestFile(serverURL, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var inputs []*models.DocumentInput
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &inputs); err != nil {
			return 0, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		var input models.DocumentInput
		if err := json.Unmarshal(data, &input); err != nil {
			return 0, fmt.Errorf("parse %s: %w", path, err)
		}
		inputs = []*models.DocumentInput{&input}
	}
	for i, input := range inputs {
		var resp map[string]string
		if err := postJSON(serverURL+"/api/v1/documents", input, &resp, false); err != nil {
			return i, err
		}
	}
	return len(inputs), nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: clinbrief delete [flags] <id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	req, err := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/documents/"+id, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed: %s\n", strings.TrimSpace(string(body)))
		os.Exit(1)
	}
	fmt.Printf("Deleted %s\n", id)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(strings.TrimSpace(string(body)))
		return
	}
	fmt.Println(pretty.String())
}

// postJSON posts body to url and decodes into out. When raw is true the
// response body is streamed to stdout instead of decoded.
func postJSON(url string, body, out interface{}, raw bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if raw {
		_, err := io.Copy(os.Stdout, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printUsage() {
	fmt.Println(`clinbrief - Clinical guideline research assistant

Usage:
  clinbrief server [flags]             Start the HTTP server
  clinbrief search [flags] <query>     Hybrid search over indexed guidelines
  clinbrief research [flags] <topic>   Run the full research pipeline
  clinbrief ingest [flags] <path> ...  Ingest JSON document files
  clinbrief delete [flags] <id>        Delete a document
  clinbrief status [flags]             Show server status
  clinbrief version                    Show version

Run "clinbrief <command> -h" for command flags.`)
}
