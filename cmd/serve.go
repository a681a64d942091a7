// cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/markb/reminderd/internal/db"
	"github.com/markb/reminderd/internal/log"
	"github.com/markb/reminderd/internal/notify"
	"github.com/markb/reminderd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reminderd server",
	Long:  `Starts the HTTP API and the background dispatcher that emails due reminders.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		port, _ := cmd.Flags().GetInt("port")
		host, _ := cmd.Flags().GetString("host")
		httpsDomain, _ := cmd.Flags().GetString("https-domain")
		certDir, _ := cmd.Flags().GetString("cert-dir")
		jwtSecret := jwtSecretFromEnv()

		log.Init(buildLogConfig(cmd))

		// Check if database exists
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database not found at %s. Run 'reminderd init' first", dbPath)
		}

		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		// Run migrations in case schema is outdated
		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		srv := server.New(database, server.Config{JWTSecret: jwtSecret})

		dispatcher := notify.NewDispatcher(
			srv.Reminders(),
			srv.Deliverer(),
			srv.Hub(),
			nil,
			buildPollInterval(cmd),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dispatcher.Start(ctx)

		errCh := make(chan error, 1)
		go func() {
			if httpsDomain != "" {
				errCh <- srv.ListenAndServeHTTPS(server.HTTPSConfig{
					Domain:  httpsDomain,
					CertDir: certDir,
				})
				return
			}
			addr := fmt.Sprintf("%s:%d", host, port)
			fmt.Printf("Starting reminderd on %s\n", addr)
			fmt.Printf("  API:    http://%s/api/v1\n", addr)
			fmt.Printf("  Status: ws://%s/api/v1/status/ws\n", addr)
			errCh <- srv.ListenAndServe(addr)
		}()

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				dispatcher.Stop()
				return err
			}
		case <-ctx.Done():
		}

		log.Info("shutting down")
		dispatcher.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// buildLogConfig assembles logging configuration.
// Priority: CLI flags > environment variables > defaults
func buildLogConfig(cmd *cobra.Command) *log.Config {
	cfg := log.DefaultConfig()

	if level := os.Getenv("REMINDERD_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("REMINDERD_LOG_FORMAT"); format != "" {
		cfg.Format = format
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Format = format
	}

	return cfg
}

// buildPollInterval resolves the dispatcher polling interval.
// Priority: CLI flags > environment variables > defaults
func buildPollInterval(cmd *cobra.Command) time.Duration {
	interval := notify.DefaultInterval

	if raw := os.Getenv("REMINDERD_POLL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		}
	}
	if secs, _ := cmd.Flags().GetInt("poll-seconds"); secs > 0 {
		interval = time.Duration(secs) * time.Second
	}

	return interval
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("db", "reminders.db", "Path to database file")
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("poll-seconds", 0, "Due-reminder polling interval in seconds (default: 30)")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, or error (default: info)")
	serveCmd.Flags().String("log-format", "", "Log format: text or json (default: text)")
	serveCmd.Flags().String("https-domain", "", "Serve HTTPS with a Let's Encrypt certificate for this domain")
	serveCmd.Flags().String("cert-dir", "./certs", "Directory to cache TLS certificates")
}
