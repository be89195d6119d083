package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/app"
	"github.com/BTreeMap/OrderPipe/internal/contact"
	"github.com/BTreeMap/OrderPipe/internal/order"
	"github.com/BTreeMap/OrderPipe/internal/store"
	"github.com/BTreeMap/OrderPipe/internal/telegram"
	"github.com/BTreeMap/OrderPipe/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for OrderPipe state data
	DefaultStateDir = "/var/lib/orderpipe"
	// DefaultOrdersDBFileName is the default SQLite order log filename
	DefaultOrdersDBFileName = "orders.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsapp.db"
	// DefaultImageDir is where model images are looked up by default
	DefaultImageDir = "images"
)

func main() {
	initializeLogger(slog.LevelInfo)

	config := loadEnvironmentConfig(os.Getenv("ORDERPIPE_ENV_FILE"))

	flags, err := parseCommandLineFlags(flag.CommandLine, config, os.Args[1:])
	if err != nil {
		slog.Error("Invalid command line", "error", err)
		os.Exit(2)
	}
	initializeLogger(flags.logLevel)

	cfg, err := buildAppConfig(flags)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping OrderPipe", "transport", cfg.Transport, "state_dir", cfg.StateDir, "api_addr", cfg.APIAddr)
	if err := app.Run(ctx, cfg); err != nil {
		slog.Error("OrderPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("OrderPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	Transport      string
	BotToken       string
	TelegramDebug  bool
	PollTimeout    int
	OperatorChatID string
	OperatorPhone  string
	StateDir       string
	DatabaseDSN    string
	WhatsAppDSN    string
	CatalogFile    string
	ImageDir       string
	ContactPolicy  string
	APIAddr        string
	TwilioSID      string
	TwilioToken    string
	TwilioFrom     string
	LogLevel       string
	SinkTimeout    time.Duration
}

// Flags holds command line flag values
type Flags struct {
	transport        string
	botToken         string
	operatorChatID   string
	stateDir         string
	dbDSN            string
	waDSN            string
	catalogFile      string
	imageDir         string
	contactPolicy    string
	apiAddr          string
	qrOutput         string
	numeric          bool
	strictInvariants bool
	logLevel         slog.Level

	config Config
}

// initializeLogger sets up structured logging at the given level
func initializeLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and an optional .env file
func loadEnvironmentConfig(envFile string) Config {
	var err error
	if envFile != "" {
		err = godotenv.Load(envFile)
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		slog.Debug("failed to load .env file", "error", err, "file", envFile)
	} else {
		slog.Debug("successfully loaded .env file", "file", envFile)
	}

	config := Config{
		Transport:      os.Getenv("TRANSPORT"),
		BotToken:       os.Getenv("BOT_TOKEN"),
		TelegramDebug:  util.ParseBoolEnv("TELEGRAM_DEBUG", false),
		PollTimeout:    util.ParseIntEnv("TELEGRAM_POLL_TIMEOUT", telegram.DefaultPollTimeout),
		OperatorChatID: os.Getenv("OPERATOR_CHAT_ID"),
		OperatorPhone:  os.Getenv("OPERATOR_PHONE"),
		StateDir:       os.Getenv("ORDERPIPE_STATE_DIR"),
		DatabaseDSN:    os.Getenv("DATABASE_URL"),
		WhatsAppDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		CatalogFile:    os.Getenv("CATALOG_FILE"),
		ImageDir:       os.Getenv("IMAGE_DIR"),
		ContactPolicy:  os.Getenv("CONTACT_POLICY"),
		APIAddr:        os.Getenv("API_ADDR"),
		TwilioSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:     os.Getenv("TWILIO_FROM_NUMBER"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		SinkTimeout:    time.Duration(util.ParseIntEnv("ORDER_SINK_TIMEOUT", int(order.DefaultSinkTimeout/time.Second))) * time.Second,
	}

	if config.Transport == "" {
		config.Transport = app.TransportTelegram
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ORDERPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultOrdersDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = defaultWhatsAppDSN(config.StateDir)
	}
	if config.ImageDir == "" {
		config.ImageDir = DefaultImageDir
	}

	slog.Debug("environment variables loaded",
		"TRANSPORT", config.Transport,
		"BOT_TOKEN_SET", config.BotToken != "",
		"OPERATOR_CHAT_ID_SET", config.OperatorChatID != "",
		"OPERATOR_PHONE_SET", config.OperatorPhone != "",
		"ORDERPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"CATALOG_FILE", config.CatalogFile,
		"CONTACT_POLICY", config.ContactPolicy,
		"API_ADDR", config.APIAddr,
		"TWILIO_SET", config.TwilioSID != "")

	return config
}

func defaultWhatsAppDSN(stateDir string) string {
	return "file:" + filepath.Join(stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// parseLogLevel accepts debug, info, warn and error.
func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// parseCommandLineFlags parses args with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, config Config, args []string) (Flags, error) {
	flags := Flags{config: config}
	var logLevel string
	fs.StringVar(&flags.transport, "transport", config.Transport, "chat transport: telegram or whatsapp (overrides $TRANSPORT)")
	fs.StringVar(&flags.botToken, "bot-token", config.BotToken, "Telegram bot token (overrides $BOT_TOKEN)")
	fs.StringVar(&flags.operatorChatID, "operator-chat-id", config.OperatorChatID, "chat that receives order notifications (overrides $OPERATOR_CHAT_ID)")
	fs.StringVar(&flags.stateDir, "state-dir", config.StateDir, "state directory for OrderPipe data (overrides $ORDERPIPE_STATE_DIR)")
	fs.StringVar(&flags.dbDSN, "db-dsn", config.DatabaseDSN, "order log DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)")
	fs.StringVar(&flags.waDSN, "whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&flags.catalogFile, "catalog", config.CatalogFile, "YAML catalog file (overrides $CATALOG_FILE)")
	fs.StringVar(&flags.imageDir, "image-dir", config.ImageDir, "directory with model images (overrides $IMAGE_DIR)")
	fs.StringVar(&flags.contactPolicy, "contact-policy", config.ContactPolicy, "contact parsing policy: lenient or strict (overrides $CONTACT_POLICY)")
	fs.StringVar(&flags.apiAddr, "api-addr", config.APIAddr, "status API address, empty disables it (overrides $API_ADDR)")
	fs.StringVar(&flags.qrOutput, "qr-output", "", "path to write the WhatsApp login QR code")
	fs.BoolVar(&flags.numeric, "numeric-code", false, "use a numeric WhatsApp login code instead of a QR code")
	fs.BoolVar(&flags.strictInvariants, "strict-invariants", false, "panic on internal invariant violations")
	fs.StringVar(&logLevel, "log-level", config.LogLevel, "log level: debug, info, warn or error (overrides $LOG_LEVEL)")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return Flags{}, err
	}
	flags.logLevel = level

	// Derived paths follow -state-dir unless they were set explicitly.
	if flags.stateDir != config.StateDir {
		if flags.dbDSN == filepath.Join(config.StateDir, DefaultOrdersDBFileName) {
			flags.dbDSN = filepath.Join(flags.stateDir, DefaultOrdersDBFileName)
		}
		if flags.waDSN == defaultWhatsAppDSN(config.StateDir) {
			flags.waDSN = defaultWhatsAppDSN(flags.stateDir)
		}
		slog.Debug("Derived paths updated for state directory", "state_dir", flags.stateDir)
	}

	slog.Debug("flags parsed",
		"transport", flags.transport,
		"botTokenSet", flags.botToken != "",
		"stateDir", flags.stateDir,
		"dbType", store.DetectDSNType(flags.dbDSN),
		"apiAddr", flags.apiAddr,
		"strictInvariants", flags.strictInvariants)
	return flags, nil
}

// buildAppConfig validates flags and turns them into the application config
func buildAppConfig(flags Flags) (app.Config, error) {
	policy, err := contact.ParsePolicy(flags.contactPolicy)
	if err != nil {
		return app.Config{}, err
	}
	cfg := app.Config{
		Transport:        strings.ToLower(strings.TrimSpace(flags.transport)),
		BotToken:         flags.botToken,
		TelegramDebug:    flags.config.TelegramDebug,
		PollTimeout:      flags.config.PollTimeout,
		WhatsAppDSN:      flags.waDSN,
		QRPath:           flags.qrOutput,
		NumericCode:      flags.numeric,
		OperatorChatID:   flags.operatorChatID,
		OperatorPhone:    flags.config.OperatorPhone,
		TwilioAccountSID: flags.config.TwilioSID,
		TwilioAuthToken:  flags.config.TwilioToken,
		TwilioFromNumber: flags.config.TwilioFrom,
		StateDir:         flags.stateDir,
		DatabaseDSN:      flags.dbDSN,
		CatalogFile:      flags.catalogFile,
		ImageDir:         flags.imageDir,
		ContactPolicy:    policy,
		SinkTimeout:      flags.config.SinkTimeout,
		APIAddr:          flags.apiAddr,
		StrictInvariants: flags.strictInvariants,
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, telegram.ErrMissingToken) {
			return app.Config{}, fmt.Errorf("%w: set BOT_TOKEN or -bot-token", err)
		}
		return app.Config{}, err
	}
	return cfg, nil
}
