// ABOUTME: Entry point for the parley-relay server
// ABOUTME: Wires the store, completion provider, and channel backend into the gateway

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/parleyhq/parley/internal/channel"
	"github.com/parleyhq/parley/internal/channel/matrix"
	"github.com/parleyhq/parley/internal/channel/streamchat"
	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/gateway"
	"github.com/parleyhq/parley/internal/relay"
	"github.com/parleyhq/parley/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _
 _ __   __ _ _ __| | ___ _   _
| '_ \ / _' | '__| |/ _ \ | | |
| |_) | (_| | |  | |  __/ |_| |
| .__/ \__,_|_|  |_|\___|\__, |
|_|                      |___/
`

// configPath returns the path to the relay config file. PARLEY_CONFIG wins,
// then the XDG config dir, then ~/.config/parley/relay.yaml.
func configPath() string {
	if p := os.Getenv("PARLEY_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "parley", "relay.yaml")
}

// dataPath returns the parley data directory under the XDG data dir.
func dataPath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "parley")
}

// xdgDir resolves an XDG base directory, falling back to the conventional
// subdirectory of $HOME, or the working directory if even that is unknown.
func xdgDir(envVar, homeSub string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, homeSub)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: parley-relay <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the relay server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check relay health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfgPath := configPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	// Components grab slog.Default in their constructors.
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", cfgPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.Completion.Model)
	green.Print("    ▶ ")
	fmt.Printf("Channel:  %s\n", cfg.Channel.Provider)
	fmt.Println()

	logger.Info("starting parley-relay",
		"config", cfgPath,
		"http_addr", cfg.Server.HTTPAddr,
		"channel_provider", cfg.Channel.Provider,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ch, err := buildChannelProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating channel provider: %w", err)
	}

	var completionOpts []completion.Option
	if cfg.Completion.BaseURL != "" {
		completionOpts = append(completionOpts, completion.WithBaseURL(cfg.Completion.BaseURL))
	}
	completer := completion.NewClient(cfg.Completion.APIKey, completionOpts...)

	registrar := relay.NewRegistrar(st, ch)
	service := relay.NewService(st, ch, completer, relay.Options{
		Model:             cfg.Completion.Model,
		ContextWindow:     cfg.Relay.ContextWindow,
		FallbackReply:     cfg.Completion.FallbackReply,
		CompletionTimeout: cfg.Completion.Timeout,
		ChannelTimeout:    cfg.Channel.Timeout,
	})

	gw := gateway.New(cfg.Server.HTTPAddr, registrar, service)
	return gw.Run(ctx)
}

// buildChannelProvider constructs the configured channel backend.
func buildChannelProvider(cfg *config.Config) (channel.Provider, error) {
	switch cfg.Channel.Provider {
	case "streamchat":
		var opts []streamchat.Option
		if cfg.Channel.Stream.BaseURL != "" {
			opts = append(opts, streamchat.WithBaseURL(cfg.Channel.Stream.BaseURL))
		}
		opts = append(opts, streamchat.WithBotID(cfg.Channel.BotID))
		return streamchat.NewClient(cfg.Channel.Stream.APIKey, cfg.Channel.Stream.APISecret, opts...)
	case "matrix":
		return matrix.NewProvider(matrix.Config{
			Homeserver:      cfg.Channel.Matrix.Homeserver,
			UserID:          cfg.Channel.Matrix.UserID,
			AccessToken:     cfg.Channel.Matrix.AccessToken,
			Domain:          cfg.Channel.Matrix.Domain,
			LocalpartPrefix: cfg.Channel.Matrix.LocalpartPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown channel provider: %s", cfg.Channel.Provider)
	}
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := strings.TrimPrefix(cfg.Server.HTTPAddr, "http://")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reaching relay at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay at %s is unhealthy: status %d", addr, resp.StatusCode)
	}

	fmt.Printf("healthy: %s\n", addr)
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("parley-relay configuration setup")
	fmt.Println("================================")
	fmt.Println()

	defaultConfigPath := configPath()
	defaultDbPath := filepath.Join(dataPath(), "relay.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Completion Provider ---")
	apiKey := prompt(reader, "API key (or ${OPENAI_API_KEY} to read from env)", "${OPENAI_API_KEY}")
	model := prompt(reader, "Model", config.DefaultModel)

	fmt.Println("\n--- Channel Provider ---")
	provider := prompt(reader, "Provider (streamchat/matrix)", "streamchat")

	var channelSection strings.Builder
	channelSection.WriteString("channel:\n")
	channelSection.WriteString(fmt.Sprintf("  provider: \"%s\"\n", provider))
	if provider == "matrix" {
		homeserver := prompt(reader, "Homeserver URL", "https://matrix.example.com")
		userID := prompt(reader, "Bot user id", "@parley:example.com")
		domain := prompt(reader, "Homeserver domain", "example.com")
		channelSection.WriteString("  matrix:\n")
		channelSection.WriteString(fmt.Sprintf("    homeserver: \"%s\"\n", homeserver))
		channelSection.WriteString(fmt.Sprintf("    user_id: \"%s\"\n", userID))
		channelSection.WriteString("    access_token: \"${MATRIX_ACCESS_TOKEN}\"\n")
		channelSection.WriteString(fmt.Sprintf("    domain: \"%s\"\n", domain))
	} else {
		channelSection.WriteString("  stream:\n")
		channelSection.WriteString("    api_key: \"${STREAM_API_KEY}\"\n")
		channelSection.WriteString("    api_secret: \"${STREAM_API_SECRET}\"\n")
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# parley-relay configuration\n")
	cfg.WriteString("# Generated by parley-relay init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("completion:\n")
	cfg.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", apiKey))
	cfg.WriteString(fmt.Sprintf("  model: \"%s\"\n", model))
	cfg.WriteString("  timeout: \"30s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString(channelSection.String())
	cfg.WriteString("\n")

	cfg.WriteString("relay:\n")
	cfg.WriteString(fmt.Sprintf("  context_window: %d\n", config.DefaultContextWindow))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  parley-relay serve\n")

	return nil
}

// prompt asks one question on stdin, falling back to defaultVal on an empty
// answer or EOF.
func prompt(reader *bufio.Reader, question, defaultVal string) string {
	fmt.Print(question)
	if defaultVal != "" {
		fmt.Printf(" [%s]", defaultVal)
	}
	fmt.Print(": ")

	line, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return defaultVal
	}
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return defaultVal
}
