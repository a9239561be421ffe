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
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/doubtsolver/doubtd/internal/answer"
	"github.com/doubtsolver/doubtd/internal/api"
	"github.com/doubtsolver/doubtd/internal/config"
	"github.com/doubtsolver/doubtd/internal/storage"
)

const defaultGenerateTimeout = 60 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the doubtd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running doubtd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show doubtd system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "doubtd.pid")
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

func generateTimeout(cfg config.Config) time.Duration {
	d, err := time.ParseDuration(cfg.Answer.Timeout)
	if err != nil || d <= 0 {
		if cfg.Answer.Timeout != "" {
			slog.Warn("invalid answer timeout, using default", "value", cfg.Answer.Timeout, "default", defaultGenerateTimeout)
		}
		return defaultGenerateTimeout
	}
	return d
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "doubtd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// A missing API key is not fatal: the server starts and each generation
	// attempt records the failure on the question instead.
	if cfg.Answer.Provider != "ollama" && cfg.Answer.OpenAIAPIKey == "" {
		printWarning("no OpenAI API key configured; questions will be stored with an error until one is set")
	}

	// Refuse a second instance. Health probe first, PID file second.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	client, err := answer.NewClient(answer.Options{
		Provider:      cfg.Answer.Provider,
		OpenAIAPIKey:  cfg.Answer.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Answer.OpenAIBaseURL,
		OpenAIModel:   cfg.Answer.OpenAIModel,
		OllamaBaseURL: cfg.Answer.OllamaBaseURL,
		OllamaModel:   cfg.Answer.OllamaModel,
	})
	if err != nil {
		return err
	}
	gen := answer.NewGenerator(client, generateTimeout(cfg))

	var apiToken string
	if cfg.Server.AuthEnabled {
		apiToken, err = config.GetAPIToken(config.NewKeychain())
		if err != nil {
			return fmt.Errorf("initializing API token: %w", err)
		}
		slog.Info("API bearer token available")
	}

	handler := api.NewHandler(api.Deps{
		Store:     store,
		Generator: gen,
		Token:     apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "doubtd listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store, Generator: gen})
	stdioSrv := server.NewStdioServer(mcpSrv)
	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP stdio server: %w", err)
		}
		return nil
	})
	slog.Info("MCP server started (stdio transport)")

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
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
		printError("doubtd is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop doubtd (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to doubtd (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", providerLabel(cfg))
	if cfg.Answer.Provider == "ollama" {
		ollamaResp, err := client.Get(cfg.Answer.OllamaBaseURL + "/api/version")
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Answer.OllamaBaseURL)
		}
	} else if cfg.Answer.OpenAIAPIKey == "" {
		printStatus("API key", "not configured")
	} else {
		printStatus("API key", "configured")
	}

	printStatus("Storage", "%s", cfg.Storage.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func providerLabel(cfg config.Config) string {
	if cfg.Answer.Provider == "ollama" {
		return fmt.Sprintf("ollama (%s)", cfg.Answer.OllamaModel)
	}
	return fmt.Sprintf("openai (%s)", cfg.Answer.OpenAIModel)
}
