package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/beamline/pkg/adapters/mcp"
	"github.com/aretw0/beamline/pkg/runner"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the beamline as an MCP Server so agents can list and read devices,
run plans and abort runs as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		srv := mcp.NewServer(a.engine, a.runner(runner.WithSignals(false)),
			mcp.WithStore(a.store),
			mcp.WithLogger(a.logger),
		)

		switch transport {
		case "stdio":
			// Logs already go to stderr, stdout carries JSON-RPC.
			a.logger.Info("Starting beamline MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				a.engine.Abort("mcp server shutting down")
			}()
			addr := fmt.Sprintf(":%d", port)
			if err := srv.ServeSSE(ctx, addr, fmt.Sprintf("http://localhost:%d", port)); err != nil {
				return fmt.Errorf("mcp server failed: %w", err)
			}
			a.logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
