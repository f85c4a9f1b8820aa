package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/voicemind/voicemind/internal/answer"
	"github.com/voicemind/voicemind/internal/api"
	"github.com/voicemind/voicemind/internal/audio"
	"github.com/voicemind/voicemind/internal/config"
	"github.com/voicemind/voicemind/internal/docs"
	"github.com/voicemind/voicemind/internal/events"
	"github.com/voicemind/voicemind/internal/metrics"
	"github.com/voicemind/voicemind/internal/pipeline"
	"github.com/voicemind/voicemind/internal/session"
	"github.com/voicemind/voicemind/internal/storage"
	"github.com/voicemind/voicemind/internal/transcribe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the voicemind server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running voicemind server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show voicemind system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, stopCmd, statusCmd)
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "voicemind.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseTimeout(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("invalid timeout, using default", "value", value, "default", fallback)
		return fallback
	}
	return d
}

func buildTranscriber(ctx context.Context, cfg config.Config) (transcribe.Transcriber, time.Duration, error) {
	timeout := parseTimeout(cfg.Transcribe.Timeout, 30*time.Second)
	switch cfg.Transcribe.Backend {
	case "whisper":
		return transcribe.NewWhisperClient(cfg.Transcribe.WhisperURL, cfg.Answer.OpenAIKey, cfg.Transcribe.WhisperModel, timeout), timeout, nil
	case "google":
		tr, err := transcribe.NewGoogleTranscriber(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("creating google speech client: %w", err)
		}
		return tr, timeout, nil
	default:
		return nil, 0, fmt.Errorf("unknown transcribe backend %q", cfg.Transcribe.Backend)
	}
}

func buildAnswerEngine(ctx context.Context, cfg config.Config) (answer.Engine, error) {
	switch cfg.Answer.Backend {
	case "openai":
		return answer.NewOpenAIEngine(cfg.Answer.OpenAIURL, cfg.Answer.OpenAIKey, cfg.Answer.Model, cfg.Answer.Temperature, cfg.Answer.MaxTokens), nil
	case "ollama":
		eng := answer.NewOllamaEngine(cfg.Answer.OllamaURL, cfg.Answer.OllamaModel, cfg.Answer.Temperature, cfg.Answer.MaxTokens)
		if !eng.IsRunning(ctx) {
			printWarning("Ollama not reachable at %s; answers will fail until it is up", cfg.Answer.OllamaURL)
		}
		return eng, nil
	default:
		return nil, fmt.Errorf("unknown answer backend %q", cfg.Answer.Backend)
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "voicemind version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("voicemind is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("voicemind is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build external gateways.
	transcriber, transcribeTimeout, err := buildTranscriber(ctx, cfg)
	if err != nil {
		return err
	}
	engine, err := buildAnswerEngine(ctx, cfg)
	if err != nil {
		return err
	}
	asker := answer.NewAsker(engine, parseTimeout(cfg.Answer.Timeout, 60*time.Second))

	// Assemble the pipeline.
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	var brokers []string
	if cfg.Events.KafkaBrokers != "" {
		brokers = strings.Split(cfg.Events.KafkaBrokers, ",")
	}
	publisher := events.NewPublisher(cfg.Events.KafkaEnabled, brokers, cfg.Events.KafkaTopic, slog.Default())
	defer publisher.Close()

	spool := audio.NewSpool(cfg.Storage.SpoolDir)
	sessions := session.NewRegistry(store)
	ingestor := pipeline.NewIngestor(store, transcriber, spool, publisher, m, slog.Default(), transcribeTimeout)
	finalizer := pipeline.NewFinalizer(store, sessions, asker, spool, publisher, m, slog.Default())

	// Start the transcription retry worker.
	worker := pipeline.NewWorker(store, transcriber, m, 15*time.Second, 10, transcribeTimeout)
	go worker.Run(ctx)

	// Build HTTP handler and server.
	handler := api.NewAppHandler(api.AppDeps{
		Store:     store,
		Sessions:  sessions,
		Ingestor:  ingestor,
		Finalizer: finalizer,
		Documents: docs.NewManager(store),
		Gatherer:  registry,
		Token:     cfg.Server.APIToken,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:     store,
		Sessions:  sessions,
		Finalizer: finalizer,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "voicemind listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("voicemind is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop voicemind (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to voicemind (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	// Check server health.
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
			running = true
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Transcribe backend", "%s", cfg.Transcribe.Backend)
	printStatus("Answer backend", "%s (%s)", cfg.Answer.Backend, answerModel(cfg))

	if cfg.Answer.Backend == "ollama" {
		ollamaResp, err := client.Get(cfg.Answer.OllamaURL + "/api/version")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Answer.OllamaURL)
		}
	}

	// Show meeting counts if server is running.
	if running {
		if c, err := newAPIClient(); err == nil {
			if listResp, err := c.get(ctx, "/api/meetings"); err == nil {
				var result struct {
					Meetings []struct {
						Status string `json:"status"`
					} `json:"meetings"`
				}
				if decodeJSON(listResp, &result) == nil {
					recording := 0
					for _, m := range result.Meetings {
						if m.Status == "recording" {
							recording++
						}
					}
					printStatus("Meetings", "%d total, %d recording", len(result.Meetings), recording)
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	if cfg.Storage.SpoolDir != "" {
		printStatus("Spool dir", "%s", cfg.Storage.SpoolDir)
	}
	return nil
}

func answerModel(cfg config.Config) string {
	if cfg.Answer.Backend == "ollama" {
		return cfg.Answer.OllamaModel
	}
	return cfg.Answer.Model
}
