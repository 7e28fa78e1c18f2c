package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/spigell/resume-butler/internal/logger"
	"github.com/spigell/resume-butler/internal/server"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assistant as MCP tools over stdio",
	Run: func(_ *cobra.Command, _ []string) {
		serveMCP()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func serveMCP() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// stdout carries the protocol.
	logger, err := logger.NewWithOutput(viper.GetBool("json"), viper.GetBool("debug"), "stderr")
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	a, err := newApplication(ctx, logger, true)
	if err != nil {
		logger.Fatal("initializing the assistant", zap.Error(err))
	}
	defer a.Close()

	deps := server.Deps{
		Sessions:  a.sessions,
		Assistant: a.assistant,
		Jobs:      a.jobs,
		Logger:    logger.With(zap.String("component", "mcp")),
	}

	logger.Info("serving mcp over stdio", zap.String("version", version))

	stdio := mcpserver.NewStdioServer(server.NewMCPServer(deps, version))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Fatal("serving mcp", zap.Error(err))
	}
}
