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

	"github.com/joho/godotenv"

	"github.com/postforge/postforge/internal/api"
	"github.com/postforge/postforge/internal/bot"
	"github.com/postforge/postforge/internal/extract"
	"github.com/postforge/postforge/internal/flow"
	"github.com/postforge/postforge/internal/genai"
	"github.com/postforge/postforge/internal/lockfile"
	"github.com/postforge/postforge/internal/messaging"
	"github.com/postforge/postforge/internal/profile"
	"github.com/postforge/postforge/internal/session"
	"github.com/postforge/postforge/internal/twilio"
	"github.com/postforge/postforge/internal/util"
	"github.com/postforge/postforge/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for PostForge state data
	DefaultStateDir = "/var/lib/postforge"
	// DefaultProfileDBFileName is the default SQLite profile database filename
	DefaultProfileDBFileName = "postforge.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// Hold the state directory for the lifetime of the process.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping PostForge")
	if err := run(ctx, flags); err != nil {
		slog.Error("PostForge failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("PostForge exited successfully")
}

// run wires the modules together and blocks until shutdown.
func run(ctx context.Context, flags Flags) error {
	// Session store: Redis when configured, in-process otherwise.
	var sessions session.Store
	if *flags.redisAddr != "" {
		redisStore, err := session.NewRedisStore(ctx, *flags.redisAddr,
			session.WithSessionTTL(util.ParseDurationEnv("SESSION_TTL", session.DefaultSessionTTL)))
		if err != nil {
			return err
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		slog.Debug("No REDIS_ADDR set, using in-memory session store")
		sessions = session.NewInMemoryStore()
	}

	// Profile store: backend picked from the DSN shape.
	var profiles profile.Store
	if profile.DetectDSNType(*flags.profileDSN) == "postgres" {
		pg, err := profile.NewPostgresStore(profile.WithDSN(*flags.profileDSN))
		if err != nil {
			return err
		}
		defer pg.Close()
		profiles = pg
	} else {
		sq, err := profile.NewSQLiteStore(profile.WithDSN(*flags.profileDSN))
		if err != nil {
			return err
		}
		defer sq.Close()
		profiles = sq
	}

	genaiClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	extractor := extract.NewExtractor(buildExtractOptions(flags)...)

	apiServer := api.NewServer(append(buildAPIOptions(flags),
		api.WithHealthChecker(genaiClient.HealthCheck))...)
	if err := apiServer.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		apiServer.Stop(shutdownCtx)
	}()

	msgr, err := buildMessenger(flags, apiServer)
	if err != nil {
		return err
	}
	if err := msgr.Start(ctx); err != nil {
		return err
	}
	defer msgr.Stop()

	// Receipts are informational only; drain them so sends never back up
	// behind a full receipt channel.
	go func() {
		for r := range msgr.Receipts() {
			slog.Debug("Delivery receipt", "to", r.To, "status", r.Status)
		}
	}()

	registry, err := flow.NewRegistry(flow.Definitions()...)
	if err != nil {
		return err
	}
	engine := flow.NewEngine(registry, sessions)

	dispatcher := bot.NewDispatcher(engine, sessions, profiles, genaiClient, extractor, msgr)
	dispatcher.Run(ctx)
	return nil
}

// buildMessenger selects the delivery backend. WhatsApp (whatsmeow) is the
// default; Twilio needs the API server to host outbound images.
func buildMessenger(flags Flags, media messaging.MediaPublisher) (messaging.Service, error) {
	if *flags.messenger == "twilio" {
		client, err := twilio.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client, media), nil
	}

	client, err := whatsapp.NewClient(buildWhatsAppOptions(flags)...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsAppService(client), nil
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	WhatsAppDSN   string
	ProfileDSN    string
	RedisAddr     string
	OpenAIKey     string
	ChatModel     string
	APIAddr       string
	PublicBaseURL string
	Messenger     string
	OCRToken      string
	OCRFolderID   string
	OCREndpoint   string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	whatsappDSN   *string
	profileDSN    *string
	redisAddr     *string
	openaiKey     *string
	chatModel     *string
	apiAddr       *string
	publicBaseURL *string
	messenger     *string
	ocrToken      *string
	ocrFolderID   *string
	ocrEndpoint   *string
}

// initializeLogger sets up structured logging. Debug level is the default;
// set POSTFORGE_DEBUG=false to quiet it down to info.
func initializeLogger() {
	level := slog.LevelDebug
	if !util.ParseBoolEnv("POSTFORGE_DEBUG", true) {
		level = slog.LevelInfo
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
		StateDir:      os.Getenv("POSTFORGE_STATE_DIR"),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		ProfileDSN:    os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		ChatModel:     os.Getenv("OPENAI_CHAT_MODEL"),
		APIAddr:       os.Getenv("API_ADDR"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
		Messenger:     os.Getenv("MESSENGER"),
		OCRToken:      os.Getenv("OCR_API_TOKEN"),
		OCRFolderID:   os.Getenv("OCR_FOLDER_ID"),
		OCREndpoint:   os.Getenv("OCR_ENDPOINT"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No POSTFORGE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
		slog.Debug("No WhatsApp DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDSN)
	}
	if config.ProfileDSN == "" {
		config.ProfileDSN = filepath.Join(config.StateDir, DefaultProfileDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.ProfileDSN)
	}

	slog.Debug("environment variables loaded",
		"POSTFORGE_STATE_DIR", config.StateDir,
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"DATABASE_URL_SET", config.ProfileDSN != "",
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSENGER", config.Messenger,
		"OCR_API_TOKEN_SET", config.OCRToken != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for PostForge data (overrides $POSTFORGE_STATE_DIR)"),
		whatsappDSN:   flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN)"),
		profileDSN:    flag.String("db-dsn", config.ProfileDSN, "database DSN for organization profiles (overrides $DATABASE_URL)"),
		redisAddr:     flag.String("redis-addr", config.RedisAddr, "Redis address for session storage, empty for in-memory (overrides $REDIS_ADDR)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		chatModel:     flag.String("chat-model", config.ChatModel, "OpenAI chat model (overrides $OPENAI_CHAT_MODEL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		publicBaseURL: flag.String("public-base-url", config.PublicBaseURL, "externally reachable base URL for hosted media (overrides $PUBLIC_BASE_URL)"),
		messenger:     flag.String("messenger", config.Messenger, "delivery backend: whatsapp or twilio (overrides $MESSENGER)"),
		ocrToken:      flag.String("ocr-token", config.OCRToken, "OCR API token for image attachments (overrides $OCR_API_TOKEN)"),
		ocrFolderID:   flag.String("ocr-folder-id", config.OCRFolderID, "OCR cloud folder ID (overrides $OCR_FOLDER_ID)"),
		ocrEndpoint:   flag.String("ocr-endpoint", config.OCREndpoint, "OCR endpoint URL (overrides $OCR_ENDPOINT)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"whatsappDSN_set", *flags.whatsappDSN != "",
		"profileDSN_set", *flags.profileDSN != "",
		"redisAddr_set", *flags.redisAddr != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"messenger", *flags.messenger)

	return flags
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.whatsappDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDSN))
	}
	return waOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.chatModel != "" {
		genaiOpts = append(genaiOpts, genai.WithChatModel(*flags.chatModel))
	}
	if d := util.ParseDurationEnv("GENAI_TIMEOUT", 0); d > 0 {
		genaiOpts = append(genaiOpts, genai.WithTimeout(d))
	}
	return genaiOpts
}

// buildExtractOptions constructs attachment extractor options
func buildExtractOptions(flags Flags) []extract.Option {
	var opts []extract.Option
	if *flags.ocrToken != "" {
		opts = append(opts, extract.WithToken(*flags.ocrToken))
	}
	if *flags.ocrFolderID != "" {
		opts = append(opts, extract.WithFolderID(*flags.ocrFolderID))
	}
	if *flags.ocrEndpoint != "" {
		opts = append(opts, extract.WithEndpoint(*flags.ocrEndpoint))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.publicBaseURL != "" {
		apiOpts = append(apiOpts, api.WithPublicBaseURL(*flags.publicBaseURL))
	}
	return apiOpts
}
