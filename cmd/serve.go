package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spigell/resume-butler/internal/logger"
	"github.com/spigell/resume-butler/internal/secrets"
	"github.com/spigell/resume-butler/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assistant over a local HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default 127.0.0.1:8080)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	logger.Info("starting the resume-butler server", zap.String("version", version))

	a, err := newApplication(ctx, logger, true)
	if err != nil {
		logger.Fatal("initializing the assistant", zap.Error(err))
	}
	defer a.Close()

	var token string
	if tokenFile := strings.TrimSpace(a.config.Server.TokenFile); tokenFile != "" {
		token, err = secrets.Load(secrets.Source{Name: "server token", File: tokenFile})
		if err != nil {
			logger.Fatal("loading server token", zap.Error(err))
		}
	}

	deps := server.Deps{
		Sessions:  a.sessions,
		Assistant: a.assistant,
		Jobs:      a.jobs,
		Token:     token,
		Logger:    logger.With(zap.String("component", "http")),
	}
	if a.store != nil {
		deps.Transcripts = a.store
	}

	srv := &http.Server{
		Addr:              a.config.Server.Listen,
		Handler:           server.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", srv.Addr), zap.Bool("auth", token != ""))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serving http", zap.Error(err))
	}

	logger.Info("server stopped")
}
