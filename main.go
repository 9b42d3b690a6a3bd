// Command chipgrid starts the chipgrid game server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from flags, falling back to CHIPGRID_* environment variables,
// an optional chipgrid.yaml and a .env file, in that order.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/viper"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/chipgrid/api"
	"github.com/wricardo/chipgrid/game/config"
	"github.com/wricardo/chipgrid/game/service"
	"github.com/wricardo/chipgrid/game/session"
	"github.com/wricardo/chipgrid/transport/mcp"
	"github.com/wricardo/chipgrid/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "chipgrid server"
)

// options is the resolved server configuration
type options struct {
	port        int
	host        string
	levelsDir   string
	sessionsDir string
	databaseURL string
	sessionTTL  time.Duration
	debug       bool
	version     bool
	ngrok       bool
	ngrokAuth   string
	ngrokDomain string
	mode        string
}

// loadSettings layers chipgrid.yaml (searched in dirs) under CHIPGRID_*
// environment variables
func loadSettings(dirs ...string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("chipgrid")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix("CHIPGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("host", "localhost")
	v.SetDefault("levels_dir", levelsDirDefault())
	v.SetDefault("sessions_dir", "sessions")
	v.SetDefault("database_url", "")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("ngrok_domain", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("Warning: Error reading chipgrid.yaml: %v", err)
		}
	} else {
		log.Printf("Loaded settings from %s", v.ConfigFileUsed())
	}
	return v
}

// levelsDirDefault honors the CONFIG_DIR environment variable, then falls back to "levels".
func levelsDirDefault() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "levels"
}

// parseFlags resolves options from args with settings supplying the defaults
func parseFlags(args []string, settings *viper.Viper) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)

	fs.IntVar(&opts.port, "port", settings.GetInt("port"), "HTTP server port")
	fs.StringVar(&opts.host, "host", settings.GetString("host"), "HTTP server host")
	fs.StringVar(&opts.levelsDir, "levels-dir", settings.GetString("levels_dir"), "Directory containing level files and rules.yaml")
	fs.StringVar(&opts.sessionsDir, "sessions-dir", settings.GetString("sessions_dir"), "Directory for saved sessions")
	fs.StringVar(&opts.databaseURL, "database-url", settings.GetString("database_url"), "Postgres connection string; saves sessions in Postgres instead of files")
	fs.DurationVar(&opts.sessionTTL, "session-ttl", settings.GetDuration("session_ttl"), "Remove sessions idle for longer than this")
	fs.BoolVar(&opts.debug, "debug", settings.GetBool("debug"), "Enable debug logging")
	fs.BoolVar(&opts.version, "version", false, "Show version information")
	fs.BoolVar(&opts.ngrok, "ngrok", settings.GetBool("ngrok"), "Enable ngrok tunnel")
	fs.StringVar(&opts.ngrokAuth, "ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	fs.StringVar(&opts.ngrokDomain, "ngrok-domain", settings.GetString("ngrok_domain"), "Custom ngrok domain (optional)")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(out, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(out, "Available modes:\n")
		fmt.Fprintf(out, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(out, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(out, "  mcp-stdio, mcp   Aliases for stdio-mcp\n")
		fmt.Fprintf(out, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nEvery option can also be set as CHIPGRID_<NAME> (e.g. CHIPGRID_LEVELS_DIR) or in chipgrid.yaml.\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.mode = "server"
	if fs.NArg() > 0 {
		opts.mode = fs.Arg(0)
	}
	if opts.sessionTTL <= 0 {
		opts.sessionTTL = 24 * time.Hour
	}
	return opts, nil
}

// main loads settings, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	opts, err := parseFlags(os.Args[1:], loadSettings("."))
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	if opts.debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	log.Printf("Starting %s v%s (mode: %s)", AppName, Version, opts.mode)

	gameService, cleanup, err := initializeServices(opts)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer cleanup()

	switch opts.mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(opts, gameService)

	case "server", "http":
		runHTTPServer(opts, gameService)

	default:
		log.Fatalf("Unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", opts.mode)
	}
}

// newRouter mounts the REST API at the root and the MCP proxy at /mcp
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
func runHTTPServer(opts *options, gameService service.GameService) {
	hub := websocket.NewHub()
	go hub.Run()

	apiServer := api.NewServer(gameService, hub)

	addr := fmt.Sprintf("%s:%d", opts.host, opts.port)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	mainRouter := newRouter(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	ngrokShouldRun := opts.ngrok
	if envEnabled := os.Getenv("NGROK_ENABLED"); envEnabled == "true" || envEnabled == "1" {
		ngrokShouldRun = true
	}

	if ngrokShouldRun {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, opts, mainRouter)
		}()
	}

	sig := <-stop
	log.Printf("Received signal: %v. Shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx is done
func runNgrokTunnel(ctx context.Context, opts *options, handler http.Handler) {
	authToken := opts.ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
		if authToken == "" {
			authToken = os.Getenv("NGROK_AUTH_TOKEN")
		}
	}

	if authToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	domain := opts.ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Printf("Using custom ngrok domain: %s", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	// Closing the tunnel is what unblocks http.Serve on shutdown
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("🚀 Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// initializeServices wires level/session managers and the game service.
// Sessions are saved in Postgres when a database URL is set and as JSON
// files otherwise. The returned cleanup closes the persistence backend.
func initializeServices(opts *options) (service.GameService, func(), error) {
	levels, err := config.NewManager(opts.levelsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create level manager: %w", err)
	}
	log.Printf("Loaded %d levels from %s", levels.Count(), opts.levelsDir)

	var persistence session.SessionPersistence
	cleanup := func() {}
	watchFiles := false

	if opts.databaseURL != "" {
		pg, err := session.NewPostgresPersistence(opts.databaseURL, levels)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		persistence = pg
		cleanup = func() {
			if err := pg.Close(); err != nil {
				log.Printf("Warning: Failed to close database: %v", err)
			}
		}
		log.Println("Saving sessions to Postgres")
	} else {
		files, err := session.NewFilePersistence(opts.sessionsDir, levels)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		persistence = files
		watchFiles = true
		log.Printf("Saving sessions to %s", opts.sessionsDir)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Printf("Warning: Failed to load persisted sessions: %v", err)
	}

	gameService := service.NewGameService(sessionManager, levels)

	go sessionCleanupRoutine(sessionManager, opts.sessionTTL)

	// Deleting a session file removes the session; rows have no such workflow
	if watchFiles {
		go filesystemSyncRoutine(sessionManager, persistence)
	}

	return gameService, cleanup, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the provided retention window.
func sessionCleanupRoutine(manager *session.Manager, ttl time.Duration) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		removed := manager.CleanupExpiredSessions(ttl)
		if removed > 0 {
			log.Printf("Cleaned up %d expired sessions", removed)
		}
	}
}

// filesystemSyncRoutine periodically syncs in-memory sessions with filesystem state.
// It removes sessions from memory when their corresponding files are deleted.
func filesystemSyncRoutine(manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if pruned := pruneDeletedSessions(manager, persistence); pruned > 0 {
			log.Printf("Filesystem sync: pruned %d orphaned sessions from memory", pruned)
		}
	}
}

// pruneDeletedSessions drops sessions whose saved copy no longer exists
func pruneDeletedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, s := range manager.List() {
		if persistence.Exists(s.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(s.ID); err == nil {
			pruned++
			log.Printf("Pruned session %s from memory (file deleted)", s.ID)
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API on the configured port; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(opts *options, gameService service.GameService) {
	var baseURL string

	externalURL := fmt.Sprintf("http://%s:%d", opts.host, opts.port)
	log.Printf("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
		baseURL = externalURL
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatalf("Failed to get available port: %v", err)
		}

		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		hub := websocket.NewHub()
		go hub.Run()

		httpServer := &http.Server{Handler: api.NewServer(gameService, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()

		baseURL = fmt.Sprintf("http://%s", internalAddr)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		log.Fatalf("MCP stdio server error: %v", err)
	}
}
