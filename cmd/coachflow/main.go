package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/brandscaling/coachflow/internal/api"
	"github.com/brandscaling/coachflow/internal/classifier"
	"github.com/brandscaling/coachflow/internal/flow"
	"github.com/brandscaling/coachflow/internal/genai"
	"github.com/brandscaling/coachflow/internal/store"
	"github.com/brandscaling/coachflow/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for coachflow state data
	DefaultStateDir = "/var/lib/coachflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "coachflow.db"
	// DefaultUploadDirName is the default upload directory inside the state dir
	DefaultUploadDirName = "uploads"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build module configurations
	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	model, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	responder := flow.NewPersonaResponder(model, classifier.New())
	engine := flow.NewEngine(st, responder)
	server := api.NewServer(st, engine, responder, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping coachflow with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("coachflow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("coachflow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	StateDir       string
	OpenAIKey      string
	OpenAIModel    string
	APIAddr        string
	APIPrefix      string
	UploadDir      string
	AllowedOrigins []string
	SweepMaxAge    int
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	apiAddr     *string
	apiPrefix   *string
	uploadDir   *string
	sweepMaxAge *int
	origins     []string
}

// initializeLogger sets up structured logging. Debug level is the default and
// can be disabled with COACHFLOW_DEBUG=false.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("COACHFLOW_DEBUG", true) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("COACHFLOW_STATE_DIR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		APIAddr:        os.Getenv("API_ADDR"),
		APIPrefix:      os.Getenv("API_PREFIX"),
		UploadDir:      os.Getenv("UPLOAD_DIR"),
		AllowedOrigins: util.ParseListEnv("ALLOWED_ORIGINS", nil),
		SweepMaxAge:    util.ParseIntEnv("SWEEP_MAX_AGE_HOURS", 24),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No COACHFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("COACHFLOW_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	// Uploads default to a directory next to the database
	if config.UploadDir == "" {
		config.UploadDir = filepath.Join(config.StateDir, DefaultUploadDirName)
		slog.Debug("No UPLOAD_DIR set, using default", "upload_dir", config.UploadDir)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"COACHFLOW_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"API_ADDR", config.APIAddr,
		"API_PREFIX", config.APIPrefix,
		"UPLOAD_DIR", config.UploadDir,
		"ALLOWED_ORIGINS", config.AllowedOrigins,
		"SWEEP_MAX_AGE_HOURS", config.SweepMaxAge)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for coachflow data (overrides $COACHFLOW_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for conversation storage (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI model name (overrides $OPENAI_MODEL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		apiPrefix:   flag.String("api-prefix", config.APIPrefix, "API path prefix (overrides $API_PREFIX)"),
		uploadDir:   flag.String("upload-dir", config.UploadDir, "directory for uploaded PDFs (overrides $UPLOAD_DIR)"),
		sweepMaxAge: flag.Int("sweep-max-age-hours", config.SweepMaxAge, "hours of inactivity before a conversation is swept (overrides $SWEEP_MAX_AGE_HOURS)"),
		origins:     config.AllowedOrigins,
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"openaiModel", *flags.openaiModel,
		"apiAddr", *flags.apiAddr,
		"apiPrefix", *flags.apiPrefix,
		"uploadDir", *flags.uploadDir,
		"sweepMaxAgeHours", *flags.sweepMaxAge)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStore selects a storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.apiPrefix != "" {
		apiOpts = append(apiOpts, api.WithAPIPrefix(*flags.apiPrefix))
	}
	if *flags.uploadDir != "" {
		apiOpts = append(apiOpts, api.WithUploadDir(*flags.uploadDir))
	}
	if len(flags.origins) > 0 {
		apiOpts = append(apiOpts, api.WithAllowedOrigins(flags.origins))
	}
	if *flags.sweepMaxAge > 0 {
		apiOpts = append(apiOpts, api.WithSweep(time.Hour, time.Duration(*flags.sweepMaxAge)*time.Hour))
	}
	return apiOpts
}
