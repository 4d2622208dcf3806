// ABOUTME: Entry point for the spacesync daemon
// ABOUTME: Mirrors Teachable courses and enrollments into Circle spaces

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
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/spacesync/internal/auth"
	"github.com/2389/spacesync/internal/circle"
	"github.com/2389/spacesync/internal/config"
	"github.com/2389/spacesync/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 ___ _ __   __ _  ___ ___  ___ _   _ _ __   ___
/ __| '_ \ / _' |/ __/ _ \/ __| | | | '_ \ / __|
\__ \ |_) | (_| | (_|  __/\__ \ |_| | | | | (__
|___/ .__/ \__,_|\___\___||___/\__, |_| |_|\___|
    |_|                        |___/
`

// getConfigPath returns the path to the spacesync config file.
// Priority: SPACESYNC_CONFIG env var > XDG_CONFIG_HOME/spacesync/config.yaml > ~/.config/spacesync/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SPACESYNC_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "spacesync", "config.yaml")
}

// getDataPath returns the path to the spacesync data directory.
// Priority: XDG_DATA_HOME/spacesync > ~/.local/share/spacesync
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "spacesync")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: spacesync <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the sync daemon")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  token    Generate an admin API token")
		fmt.Println("  health   Check daemon health")
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
	case "token":
		err = runToken()
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
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Sync:     %s\n", cfg.Sync.DeleteInterval)

	if cfg.Teachable.APIKey == "" || cfg.Circle.APITokenV1 == "" || cfg.Circle.APITokenV2 == "" {
		yellow.Print("    ▶ ")
		fmt.Println("Registry credentials incomplete: sync is paused until configured")
	}

	fmt.Println()

	logger.Info("starting spacesync",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"sync_cadence", cfg.Sync.DeleteInterval,
	)

	// Create and run the daemon
	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runToken generates an admin JWT signed with the configured secret.
// Supports "--ttl 720h" for a non-default lifetime.
func runToken() error {
	ttl := 30 * 24 * time.Hour
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--ttl":
			if i+1 >= len(args) {
				return fmt.Errorf("--ttl requires a value")
			}
			parsed, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
			ttl = parsed
			i++
		case strings.HasPrefix(arg, "--ttl="):
			parsed, err := time.ParseDuration(strings.TrimPrefix(arg, "--ttl="))
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
			ttl = parsed
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt_secret not configured in %s", configPath)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate("admin", ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	expiresAt := time.Now().Add(ttl).UTC()
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format("Jan 02, 2006"))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("spacesync configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "spacesync.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Teachable
	fmt.Println("\n--- Teachable Configuration ---")
	teachableKey := prompt(reader, "Teachable API key (leave empty to configure later)", "")

	// Circle
	fmt.Println("\n--- Circle Configuration ---")
	circleV1 := prompt(reader, "Circle v1 API token (leave empty to configure later)", "")
	circleV2 := prompt(reader, "Circle admin v2 API token (leave empty to configure later)", "")

	// With a v1 token we can list the available communities and space groups
	// so the IDs don't have to be dug out of the Circle admin UI.
	if circleV1 != "" {
		printCircleChoices(circleV1, reader)
	}

	communityID := prompt(reader, "Circle community ID", "")
	spaceGroupID := prompt(reader, "Circle space group ID", "")
	privateStr := prompt(reader, "Create spaces as private?", "yes")
	private := strings.ToLower(privateStr) == "yes" || strings.ToLower(privateStr) == "y"

	// Sync
	fmt.Println("\n--- Sync Configuration ---")
	cadence := prompt(reader, "Sync cadence (disabled/every_minute/hourly/twicedaily/daily)", "daily")

	// Webhook secret
	fmt.Println("\n--- Webhook Configuration ---")
	webhookSecret := prompt(reader, "Webhook shared secret (leave empty to accept any caller)", "")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# spacesync configuration\n")
	cfg.WriteString("# Generated by spacesync init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString("  jwt_secret: \"\"\n")
	cfg.WriteString(fmt.Sprintf("  webhook_secret: \"%s\"\n", webhookSecret))
	cfg.WriteString("\n")

	cfg.WriteString("teachable:\n")
	cfg.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", teachableKey))
	cfg.WriteString("\n")

	cfg.WriteString("circle:\n")
	cfg.WriteString(fmt.Sprintf("  api_token_v1: \"%s\"\n", circleV1))
	cfg.WriteString(fmt.Sprintf("  api_token_v2: \"%s\"\n", circleV2))
	cfg.WriteString(fmt.Sprintf("  community_id: \"%s\"\n", communityID))
	cfg.WriteString(fmt.Sprintf("  space_group_id: \"%s\"\n", spaceGroupID))
	cfg.WriteString("  space:\n")
	cfg.WriteString(fmt.Sprintf("    private: %t\n", private))
	cfg.WriteString("    hidden_from_non_members: true\n")
	cfg.WriteString("    hidden: false\n")
	cfg.WriteString("\n")

	cfg.WriteString("sync:\n")
	cfg.WriteString(fmt.Sprintf("  delete_interval: \"%s\"\n", cadence))
	cfg.WriteString("  http_timeout: \"30s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the daemon:")
	fmt.Printf("  spacesync serve\n")

	return nil
}

// printCircleChoices lists the communities (and optionally the space groups of
// one of them) visible to the v1 token. Failures are informational only; init
// carries on with manual entry.
func printCircleChoices(tokenV1 string, reader *bufio.Reader) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	client := circle.NewHTTPClient(config.DefaultCircleBaseURL, tokenV1, "", 15*time.Second, logger)

	communities, err := client.ListCommunities(ctx)
	if err != nil {
		fmt.Printf("  (could not list communities: %v)\n", err)
		return
	}

	fmt.Println("\n  Available communities:")
	for _, c := range communities {
		fmt.Printf("    %s  %s\n", c.ID, c.Name)
	}

	lookupID := ""
	if len(communities) == 1 {
		lookupID = communities[0].ID
	} else {
		lookupID = prompt(reader, "Community ID to list space groups for (leave empty to skip)", "")
	}
	if lookupID == "" {
		return
	}

	groups, err := client.ListSpaceGroups(ctx, lookupID)
	if err != nil {
		fmt.Printf("  (could not list space groups: %v)\n", err)
		return
	}

	fmt.Println("\n  Available space groups:")
	for _, g := range groups {
		fmt.Printf("    %s  %s\n", g.ID, g.Name)
	}
	fmt.Println()
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
