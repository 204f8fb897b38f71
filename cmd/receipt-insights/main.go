package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zombor/receipt-insights/internal/insights"
	"github.com/zombor/receipt-insights/internal/receipt"
	"github.com/zombor/receipt-insights/internal/scanning"
	"github.com/zombor/receipt-insights/internal/server"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type config struct {
	port         int
	store        string
	dbPath       string
	imageStorage string
	storagePath  string
	gcsBucket    string
	gcsPrefix    string
	model        string
	geminiKey    string
	geminiModel  string
	vertexProj   string
	vertexLoc    string
	vertexModel  string
	ollamaURL    string
	ollamaModel  string
	modelTimeout time.Duration
	modelRPS     float64
	modelBurst   int
	cacheTTL     time.Duration
	currency     string
	location     *time.Location
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; flags and the environment still apply
	_ = godotenv.Load()

	fs := ff.NewFlagSet("receipt-insights")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		store        = fs.StringLong("store", "bolt", "Document store: 'bolt' or 'sqlite'")
		dbPath       = fs.StringLong("db", "receipt-insights.db", "Database file path")
		imageStorage = fs.StringLong("image-storage", "local", "Image storage: 'local' or 'gcs'")
		storagePath  = fs.StringLong("storage", "./receipts", "Local image directory")
		gcsBucket    = fs.StringLong("gcs-bucket", "", "GCS bucket for receipt images")
		gcsPrefix    = fs.StringLong("gcs-prefix", "receipts/", "Object name prefix inside the GCS bucket")
		modelBackend = fs.StringLong("model", "gemini", "Model backend: 'gemini', 'vertex' or 'ollama'")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		vertexProj   = fs.StringLong("vertex-project", "", "Vertex AI project ID")
		vertexLoc    = fs.StringLong("vertex-location", "us-central1", "Vertex AI location")
		vertexModel  = fs.StringLong("vertex-model", "gemini-2.5-flash", "Vertex AI model name")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		modelTimeout = fs.DurationLong("model-timeout", 60*time.Second, "Timeout for a single model call")
		modelRPS     = fs.Float64Long("model-rps", 1, "Model calls per second (0 disables limiting)")
		modelBurst   = fs.IntLong("model-burst", 3, "Model call burst size")
		cacheTTL     = fs.DurationLong("insights-cache-ttl", 10*time.Minute, "How long generated insights are reused (0 disables)")
		currency     = fs.StringLong("currency", insights.DefaultCurrency, "Currency symbol used in prompts")
		timezone     = fs.StringLong("timezone", "UTC", "IANA time zone for monthly totals (e.g., America/Sao_Paulo, Local)")
		logLevel     = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat    = fs.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_INSIGHTS"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := setupLogging(*logLevel, *logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	location, err := time.LoadLocation(*timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid timezone %q: %v\n", *timezone, err)
		os.Exit(1)
	}

	cfg := config{
		port:         *port,
		store:        *store,
		dbPath:       *dbPath,
		imageStorage: *imageStorage,
		storagePath:  *storagePath,
		gcsBucket:    *gcsBucket,
		gcsPrefix:    *gcsPrefix,
		model:        *modelBackend,
		geminiKey:    *geminiKey,
		geminiModel:  *geminiModel,
		vertexProj:   *vertexProj,
		vertexLoc:    *vertexLoc,
		vertexModel:  *vertexModel,
		ollamaURL:    *ollamaURL,
		ollamaModel:  *ollamaModel,
		modelTimeout: *modelTimeout,
		modelRPS:     *modelRPS,
		modelBurst:   *modelBurst,
		cacheTTL:     *cacheTTL,
		currency:     *currency,
		location:     location,
	}
	if err := run(cfg); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q (valid: text, json)", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func openDocumentStore(cfg config) (receipt.DocumentStore, error) {
	switch cfg.store {
	case "bolt":
		return receipt.NewBoltDB(cfg.dbPath)
	case "sqlite":
		return receipt.NewSQLiteDB(cfg.dbPath)
	default:
		return nil, fmt.Errorf("invalid store %q (valid: bolt, sqlite)", cfg.store)
	}
}

func openImageStorage(ctx context.Context, cfg config) (receipt.Storage, error) {
	switch cfg.imageStorage {
	case "local":
		return receipt.NewLocalStorage(cfg.storagePath)
	case "gcs":
		return receipt.NewGCSStorage(ctx, cfg.gcsBucket, cfg.gcsPrefix)
	default:
		return nil, fmt.Errorf("invalid image storage %q (valid: local, gcs)", cfg.imageStorage)
	}
}

func openModel(ctx context.Context, cfg config) (scanning.Model, error) {
	switch cfg.model {
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini api key is required; set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini model...", "model", cfg.geminiModel)
		return scanning.NewGemini(apiKey, cfg.geminiModel, cfg.modelTimeout)
	case "vertex":
		slog.Info("Initializing Vertex AI model...", "project", cfg.vertexProj, "location", cfg.vertexLoc, "model", cfg.vertexModel)
		return scanning.NewVertex(ctx, cfg.vertexProj, cfg.vertexLoc, cfg.vertexModel, cfg.modelTimeout)
	case "ollama":
		slog.Info("Initializing Ollama model...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel, cfg.modelTimeout)
	default:
		return nil, fmt.Errorf("invalid model backend %q (valid: gemini, vertex, ollama)", cfg.model)
	}
}

func run(cfg config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing database...", "store", cfg.store, "path", cfg.dbPath)
	db, err := openDocumentStore(cfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	slog.Info("Initializing storage...", "type", cfg.imageStorage)
	images, err := openImageStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	if closer, ok := images.(io.Closer); ok {
		defer closer.Close()
	}

	model, err := openModel(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing model: %w", err)
	}
	defer model.Close()

	var limiter *rate.Limiter
	if cfg.modelRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.modelRPS), cfg.modelBurst)
	}
	model = scanning.RateLimited(model, limiter)

	receiptService := receipt.NewService(receipt.NewGateway(db), scanning.NewScanner(model), images)
	advisor := insights.NewAdvisor(model, cfg.cacheTTL, cfg.currency).WithLocation(cfg.location)
	srv := server.NewServer(receiptService, advisor).WithLocation(cfg.location)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, fmt.Sprintf(":%d", cfg.port))
	})
	g.Go(func() error {
		return advisor.RunJanitor(gctx, cfg.cacheTTL)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped gracefully")
	return nil
}
