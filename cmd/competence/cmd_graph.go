package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/session"
	"github.com/nvandessel/competence/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Visualize the competence graph with mastery status",
		Long: `Output the competence graph in DOT (Graphviz), JSON, or HTML format.
Nodes are coloured by status: mastered, ready to learn, or locked behind an
unmastered prerequisite.

With --serve a local HTTP server renders the learner's current state on
every request until interrupted.

Examples:
  competence graph | dot -Tsvg > graph.svg
  competence graph --format html -o graph.html
  competence graph --serve --addr localhost:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			noOpen, _ := cmd.Flags().GetBool("no-open")
			serve, _ := cmd.Flags().GetBool("serve")
			addr, _ := cmd.Flags().GetString("addr")

			format, err := visualization.ParseFormat(formatName)
			if err != nil {
				return err
			}

			env, err := openSessionEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if serve {
				return runGraphServer(cmd, env, addr, noOpen)
			}

			data, err := visualization.Render(env.domainName(), env.sess.Vector(), format)
			if err != nil {
				return err
			}

			if format == visualization.FormatHTML {
				return writeStaticHTML(cmd, data, output, noOpen)
			}
			if output != "" {
				if err := os.WriteFile(output, data, 0644); err != nil {
					return fmt.Errorf("write graph file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", output)
				return nil
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().String("format", "dot", "Output format: dot, json, or html")
	cmd.Flags().StringP("output", "o", "", "Output file path")
	cmd.Flags().Bool("no-open", false, "Don't open browser after generating HTML")
	cmd.Flags().Bool("serve", false, "Serve the live graph over HTTP")
	cmd.Flags().String("addr", "localhost:0", "Listen address for --serve")

	return cmd
}

// writeStaticHTML writes a self-contained HTML page and opens it.
func writeStaticHTML(cmd *cobra.Command, data []byte, output string, noOpen bool) error {
	outPath := output
	if outPath == "" {
		outPath = filepath.Join(os.TempDir(), "competence-graph.html")
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write HTML file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", outPath)

	if !noOpen {
		if err := visualization.OpenFile(outPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, outPath)
		}
	}
	return nil
}

// runGraphServer serves the graph and blocks until SIGINT/SIGTERM.
func runGraphServer(cmd *cobra.Command, env *appEnv, addr string, noOpen bool) error {
	srv := visualization.NewServer(env.domainName(), liveSnapshot(cmd.Context(), env))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, addr) }()

	deadline := time.Now().Add(3 * time.Second)
	for srv.Addr() == "" && time.Now().Before(deadline) {
		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if srv.Addr() == "" {
		return fmt.Errorf("server failed to start")
	}

	url := "http://" + srv.Addr()
	fmt.Fprintf(cmd.OutOrStdout(), "Graph server running at %s\n", url)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

	if !noOpen {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// liveSnapshot reloads the learner from the store on each call so that
// updates made by other processes show up. On failure it falls back to the
// state loaded at startup.
func liveSnapshot(ctx context.Context, env *appEnv) visualization.SnapshotFunc {
	opts := session.Options{
		Domain:    env.dom,
		LearnerID: env.sess.LearnerID(),
		Store:     env.store,
		Threshold: env.sess.Threshold(),
		Logger:    env.logger,
	}
	return func() *mastery.Vector {
		s, err := session.Open(ctx, opts)
		if err != nil {
			env.logger.Warn("graph snapshot reload failed", "error", err)
			return env.sess.Vector()
		}
		return s.Vector()
	}
}
