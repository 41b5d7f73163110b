package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nvandessel/competence/internal/integration"
	"github.com/nvandessel/competence/internal/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the learner session over MCP on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the tools
competence_evidence, competence_unit_result, competence_mastery,
competence_next, competence_reset and competence_graph, plus the
competence://learner/mastery resource.

With --metrics-addr the Prometheus metrics are served over HTTP at /metrics
for as long as the MCP server runs.

Example MCP client config:
  {"command": "competence", "args": ["mcp-server", "--root", "/path/to/project"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			env, err := openSessionEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if env.sess.Fresh() {
				if err := env.sess.Save(cmd.Context()); err != nil {
					return fmt.Errorf("failed to save initial state: %w", err)
				}
			}

			srv, err := mcp.NewServer(&mcp.Config{
				Name:       "competence",
				Version:    version,
				Root:       env.root,
				Session:    env.sess,
				DomainName: env.domainName(),
				RateLimit:  env.cfg.MCP.RateLimit,
				Logger:     env.logger,
				Decisions:  env.decisions,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx := cmd.Context()
			if metricsAddr != "" {
				stop := serveMetrics(cmd, metricsAddr)
				defer stop()
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. localhost:9090)")

	cmd.AddCommand(
		newMCPInstallCmd(),
		newMCPUninstallCmd(),
	)
	return cmd
}

func newMCPInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register the MCP server with AI coding tools in this project",
		Long: `Add a "competence" entry to the mcpServers map of each detected tool:
  claude - .mcp.json
  cursor - .cursor/mcp.json

Other servers in those files are kept. With --platform the named tool is
configured even when it is not detected.

Examples:
  competence mcp-server install
  competence mcp-server install --platform cursor --learner ada`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			root, _ := cmd.Flags().GetString("root")
			binary, _ := cmd.Flags().GetString("binary")
			learner, _ := cmd.Flags().GetString("learner")

			platforms, err := selectPlatforms(cmd, root)
			if err != nil {
				return err
			}

			entry := integration.DefaultEntry(binary, learner)
			results := make([]integration.Result, 0, len(platforms))
			var failed bool
			for _, p := range platforms {
				r := integration.Install(p, root, entry)
				failed = failed || r.Error != ""
				results = append(results, r)
			}

			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{"results": results}); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					switch {
					case r.Error != "":
						fmt.Fprintf(cmd.OutOrStdout(), "%s: error: %s\n", r.Platform, r.Error)
					case r.Unchanged:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: already configured (%s)\n", r.Platform, r.ConfigPath)
					default:
						fmt.Fprintf(cmd.OutOrStdout(), "%s: configured %s\n", r.Platform, r.ConfigPath)
					}
				}
			}
			if failed {
				return fmt.Errorf("failed to configure one or more platforms")
			}
			return nil
		},
	}
	cmd.Flags().String("platform", "", "Configure only this tool ("+strings.Join(integration.DefaultRegistry.Names(), ", ")+")")
	cmd.Flags().String("binary", "competence", "Command the tool runs to start the server")
	return cmd
}

func newMCPUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the MCP server entry from AI coding tools in this project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			root, _ := cmd.Flags().GetString("root")

			platforms, err := selectPlatforms(cmd, root)
			if err != nil {
				return err
			}
			removed := []string{}
			for _, p := range platforms {
				ok, err := integration.Uninstall(p, root)
				if err != nil {
					return fmt.Errorf("%s: %w", p.Name(), err)
				}
				if ok {
					removed = append(removed, p.Name())
				}
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"removed": removed})
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No competence entries found")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed from: %s\n", strings.Join(removed, ", "))
			return nil
		},
	}
	cmd.Flags().String("platform", "", "Only this tool")
	return cmd
}

// selectPlatforms returns --platform, or every tool detected under root.
func selectPlatforms(cmd *cobra.Command, root string) ([]integration.Platform, error) {
	name, _ := cmd.Flags().GetString("platform")
	if name != "" {
		p := integration.DefaultRegistry.Get(name)
		if p == nil {
			return nil, fmt.Errorf("unknown platform %q (valid: %s)", name, strings.Join(integration.DefaultRegistry.Names(), ", "))
		}
		return []integration.Platform{p}, nil
	}
	detected := integration.DefaultRegistry.Detect(root)
	if len(detected) == 0 {
		return nil, fmt.Errorf("no supported tool detected in %s; use --platform", root)
	}
	return detected, nil
}

// serveMetrics starts the promhttp handler on addr and returns a function
// that shuts it down. Listen errors are logged, not fatal.
func serveMetrics(cmd *cobra.Command, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: metrics server: %v\n", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
