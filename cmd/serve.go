package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"veriseal/authenticity-api/internal/api"
	"veriseal/authenticity-api/internal/behavior"
	"veriseal/authenticity-api/internal/feedback"
	"veriseal/authenticity-api/internal/logging"
	"veriseal/authenticity-api/internal/store"
	"veriseal/authenticity-api/internal/support"
	"veriseal/authenticity-api/internal/verdict"
	"veriseal/authenticity-api/internal/vision"
	"veriseal/authenticity-api/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authenticity API server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "HTTP port to listen on")
	serveCmd.Flags().String("seed", "data/seed.json", "path to a seed data JSON file to load on startup")
	serveCmd.Flags().String("archive", "authenticity.sqlite3", "path to the audit archive database ('' disables it)")
	serveCmd.Flags().String("classifier-url", "", "endpoint of the image classifier service ('' uses heuristic fallback)")
	serveCmd.Flags().String("ocr-url", "", "endpoint of the OCR service ('' disables text extraction)")
	serveCmd.Flags().Duration("fetch-timeout", 10*time.Second, "timeout for fetching product images")
	serveCmd.Flags().Int("genuine-threshold", 0, "override the GENUINE score threshold (0 keeps the default)")
	serveCmd.Flags().Int("suspicious-threshold", 0, "override the SUSPICIOUS score threshold (0 keeps the default)")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.seed", serveCmd.Flags().Lookup("seed"))
	_ = viper.BindPFlag("archive.path", serveCmd.Flags().Lookup("archive"))
	_ = viper.BindPFlag("vision.classifier_url", serveCmd.Flags().Lookup("classifier-url"))
	_ = viper.BindPFlag("vision.ocr_url", serveCmd.Flags().Lookup("ocr-url"))
	_ = viper.BindPFlag("vision.fetch_timeout", serveCmd.Flags().Lookup("fetch-timeout"))
	_ = viper.BindPFlag("scoring.genuine_threshold", serveCmd.Flags().Lookup("genuine-threshold"))
	_ = viper.BindPFlag("scoring.suspicious_threshold", serveCmd.Flags().Lookup("suspicious-threshold"))
}

func runServer() {
	log := logging.Log

	port := viper.GetInt("server.port")
	// Most PaaS platforms inject PORT as an env var; it takes precedence.
	if envPort := os.Getenv("PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			port = p
		}
	}

	// ── Wire dependencies ─────────────────────────────────────────────────────
	s := store.New()

	var archive *store.Archive
	if path := viper.GetString("archive.path"); path != "" {
		var err error
		archive, err = store.OpenArchive(path)
		if err != nil {
			// Non-fatal: the API works without the audit archive, retraining
			// requests just will not be recorded.
			log.WithField("path", path).WithError(err).Warn("audit archive unavailable")
		} else {
			defer archive.Close()
		}
	}

	analyzer := vision.New(
		vision.NewHTTPFetcher(viper.GetDuration("vision.fetch_timeout")),
		buildClassifier(),
		buildOCR(),
	)

	engine := verdict.New(s, analyzer)
	if g, sus := viper.GetInt("scoring.genuine_threshold"), viper.GetInt("scoring.suspicious_threshold"); g > 0 && sus > 0 {
		engine = engine.WithThresholds(g, sus)
	}

	notifier := webhook.New(s)
	monitor := feedback.New(archive)
	handler := api.NewHandler(s, archive, engine, behavior.New(), monitor, support.New(), notifier)
	router := api.NewRouter(handler)

	// ── Load seed data ────────────────────────────────────────────────────────
	if seedFile := viper.GetString("server.seed"); seedFile != "" {
		loaded, skipped, err := api.LoadSeedFile(s, seedFile)
		if err != nil {
			// Non-fatal: the API works fine without seed data.
			log.WithField("file", seedFile).WithField("reason", err.Error()).Warn("seed data not loaded")
		} else {
			log.WithField("file", seedFile).WithField("loaded", loaded).WithField("skipped", skipped).
				Info("seed data loaded")
		}
	}

	// ── Start HTTP server ─────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithField("port", port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
			os.Exit(1)
		}
	}()

	<-quit
	log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	log.Info("server stopped")
}

func buildClassifier() vision.Classifier {
	if url := viper.GetString("vision.classifier_url"); url != "" {
		return vision.NewRemoteClassifier(url, viper.GetDuration("vision.fetch_timeout"))
	}
	// The zero-value stub reports the capability as unavailable, which the
	// analyzer degrades around.
	return &vision.StubClassifier{}
}

func buildOCR() vision.OCR {
	if url := viper.GetString("vision.ocr_url"); url != "" {
		return vision.NewRemoteOCR(url, viper.GetDuration("vision.fetch_timeout"))
	}
	return &vision.StubOCR{}
}
