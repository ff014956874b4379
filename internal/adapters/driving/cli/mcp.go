package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/backsync/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the synchronizer to MCP clients",
	Long: `Serve the fetch, objects and status tools and the sources and history
resources to MCP clients.

JSON-RPC over stdio is the default. --port or --addr switch to streamable
HTTP, which the MCP Inspector can connect to.

  backsync mcp serve
  backsync mcp serve --port 8080
  backsync mcp serve --addr 127.0.0.1:8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "serve HTTP on this port of every interface")
	mcpServeCmd.Flags().String("addr", "", "serve HTTP on host:port")
	mcpServeCmd.MarkFlagsMutuallyExclusive("port", "addr")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

// listenAddr resolves the flags to a listen address. "" means stdio.
func listenAddr(cmd *cobra.Command) (string, error) {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return "", err
	}
	if addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return "", fmt.Errorf("invalid --addr %q: %w", addr, err)
		}
		return addr, nil
	}

	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return "", err
	}
	switch {
	case port == 0:
		return "", nil
	case port < 0 || port > 65535:
		return "", fmt.Errorf("invalid --port %d", port)
	default:
		return net.JoinHostPort("", strconv.Itoa(port)), nil
	}
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	addr, err := listenAddr(cmd)
	if err != nil {
		return err
	}

	ports := &mcp.Ports{}
	if services != nil {
		ports.Sync = services.Sync
		ports.Source = services.Source
	}
	server, err := mcp.NewServer(ports, mcp.WithVersion(version), mcp.WithLogger(log))
	if err != nil {
		return err
	}

	watchConfig(cmd)
	if addr != "" {
		cmd.Printf("MCP server listening on http://%s\n", addr)
	}
	return server.Serve(cmd.Context(), addr)
}
