package cmd

import (
	"context"
	"fmt"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/calassist/internal/logging"
	"github.com/teemow/calassist/internal/resources"
	"github.com/teemow/calassist/internal/tools/calendar_tools"
)

func newMCPCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the calendar tools over MCP stdio",
		Long: `Start an MCP (Model Context Protocol) server on stdin/stdout.

The server exposes the calendar operations and the chat assistant as MCP
tools, and the upcoming events and authorization state as MCP resources.
Credentials are read from TOKEN_FILE; run the web service once and visit
/authorize to create it.

Logs are written to stderr so they never corrupt the protocol stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context(), debug)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func runMCP(ctx context.Context, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := setupLogger(os.Stderr, cfg, debug)
	if err != nil {
		return err
	}
	logger = logging.WithService(logger, "calassist-mcp")

	provider, err := newInstrumentation(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	a, err := buildApp(cfg, logger, provider)
	if err != nil {
		return err
	}

	// The calendar tools work without a model; only assistant_chat degrades
	// to the fallback reply.
	if err := a.generator.Load(ctx); err != nil {
		logger.Warn("model unavailable, assistant_chat will answer with the fallback reply",
			"model", cfg.ModelName, logging.Err(err))
	}

	mcpSrv := mcpserver.NewMCPServer("calassist", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithRecovery(),
	)

	if err := calendar_tools.RegisterCalendarTools(mcpSrv, calendar_tools.Deps{
		Calendar:  a.gateway,
		Assistant: a.router,
		Metrics:   provider.Metrics(),
		Logger:    logger,
	}); err != nil {
		return fmt.Errorf("failed to register calendar tools: %w", err)
	}

	if err := resources.RegisterCalendarResources(mcpSrv, a.gateway, a.store); err != nil {
		return fmt.Errorf("failed to register calendar resources: %w", err)
	}

	logger.Info("serving MCP over stdio", "tools", len(mcpSrv.ListTools()))
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
