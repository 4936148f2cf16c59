// Package main provides the GrandCypher CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/orneryd/grandcypher/pkg/config"
	"github.com/orneryd/grandcypher/pkg/cypher"
	"github.com/orneryd/grandcypher/pkg/graph"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg := config.LoadFromEnv()
	log := logrus.New()

	rootCmd := &cobra.Command{
		Use:   "grandcypher",
		Short: "GrandCypher - Cypher queries over attributed host graphs",
		Long: `GrandCypher evaluates a read-only subset of the Cypher query
language against attributed, optionally-directed, optionally-multi graphs
loaded from JSON/YAML snapshots or a persistent BadgerDB store.

Features:
  • MATCH patterns with labels, properties, and variable-length edges
  • WHERE / RETURN / DISTINCT / ORDER BY / SKIP / LIMIT
  • Aggregates (COUNT, SUM, MIN, MAX, AVG) with multigraph-aware results
  • Hint pinning to restrict the search to known node ids`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = logrus.DebugLevel
			}
			log.SetLevel(level)
			return nil
		},
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("GrandCypher v%s (%s)\n", version, commit)
		},
	})

	queryCmd := &cobra.Command{
		Use:   "query [cypher]",
		Short: "Run a Cypher query against a host graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], cfg, log)
		},
	}
	queryCmd.Flags().StringP("graph", "g", cfg.GraphPath, "Graph snapshot file (JSON or YAML)")
	queryCmd.Flags().String("data-dir", cfg.DataDir, "BadgerDB data directory (instead of a snapshot)")
	queryCmd.Flags().String("format", cfg.Format, "Output format: table or json")
	queryCmd.Flags().StringArray("hint", nil,
		"Pin variables to node ids, e.g. --hint A=1,B=2 (repeat for OR-combined hints)")
	rootCmd.AddCommand(queryCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print node/edge counts and label inventory for a graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, cfg)
		},
	}
	inspectCmd.Flags().StringP("graph", "g", cfg.GraphPath, "Graph snapshot file (JSON or YAML)")
	rootCmd.AddCommand(inspectCmd)

	importCmd := &cobra.Command{
		Use:   "import [snapshot]",
		Short: "Import a snapshot into a persistent BadgerDB store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], cfg, log)
		},
	}
	importCmd.Flags().String("data-dir", cfg.DataDir, "BadgerDB data directory")
	rootCmd.AddCommand(importCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openGraph loads the host graph named by the command's flags: a persistent
// store when --data-dir is set, otherwise a snapshot file.
func openGraph(cmd *cobra.Command) (graph.Graph, func() error, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir != "" {
		bg, err := graph.OpenBadgerGraph(graph.BadgerOptions{DataDir: dataDir})
		if err != nil {
			return nil, nil, err
		}
		return bg, bg.Close, nil
	}

	path, _ := cmd.Flags().GetString("graph")
	if path == "" {
		return nil, nil, fmt.Errorf("no graph given: use --graph or --data-dir")
	}
	g, err := graph.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return g, func() error { return nil }, nil
}

func runQuery(cmd *cobra.Command, query string, cfg *config.Config, log *logrus.Logger) error {
	g, closeGraph, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer closeGraph()

	hintFlags, _ := cmd.Flags().GetStringArray("hint")
	hints, err := parseHints(hintFlags)
	if err != nil {
		return err
	}

	eng := cypher.NewEngine(g)
	eng.SetLogger(log)

	res, err := eng.Run(context.Background(), query, hints...)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if strings.EqualFold(format, config.FormatJSON) {
		return printJSON(res)
	}
	printTable(res)
	return nil
}

// parseHints converts --hint flags into engine hints. Each flag occurrence
// is one hint map (keys AND-combine); occurrences OR-combine.
func parseHints(flags []string) ([]cypher.Hint, error) {
	var hints []cypher.Hint
	for _, flag := range flags {
		hint := cypher.Hint{}
		for _, pair := range strings.Split(flag, ",") {
			name, id, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || name == "" || id == "" {
				return nil, fmt.Errorf("malformed hint %q: want var=nodeID", pair)
			}
			hint[name] = graph.NodeID(id)
		}
		hints = append(hints, hint)
	}
	return hints, nil
}

func printJSON(res *cypher.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Table())
}

func printTable(res *cypher.Result) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	fmt.Printf("(%d rows)\n", res.RowCount())
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case map[string]any, map[graph.EdgeKey]map[string]any, []any, cypher.EdgeAttrs:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

func runInspect(cmd *cobra.Command, cfg *config.Config) error {
	path, _ := cmd.Flags().GetString("graph")
	if path == "" {
		return fmt.Errorf("no graph given: use --graph")
	}
	g, err := graph.Load(path)
	if err != nil {
		return err
	}

	labels := make(map[string]int)
	_ = g.Nodes(context.Background(), func(id graph.NodeID) error {
		attrs, err := g.NodeAttrs(id)
		if err != nil {
			return err
		}
		for _, l := range graph.Labels(attrs) {
			labels[l]++
		}
		return nil
	})

	fmt.Printf("nodes:      %d\n", g.NodeCount())
	fmt.Printf("edges:      %d\n", g.EdgeCount())
	fmt.Printf("directed:   %v\n", g.IsDirected())
	fmt.Printf("multigraph: %v\n", g.IsMultigraph())
	if len(labels) > 0 {
		fmt.Println("labels:")
		for l, count := range labels {
			fmt.Printf("  %s: %d\n", l, count)
		}
	}
	return nil
}

func runImport(cmd *cobra.Command, snapshotPath string, cfg *config.Config, log *logrus.Logger) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		return fmt.Errorf("import requires --data-dir")
	}

	mem, err := graph.Load(snapshotPath)
	if err != nil {
		return err
	}
	snap := graph.ToSnapshot(mem)

	bg, err := graph.OpenBadgerGraph(graph.BadgerOptions{
		DataDir:    dataDir,
		Directed:   snap.Directed,
		Multigraph: snap.Multigraph,
	})
	if err != nil {
		return err
	}
	defer bg.Close()

	if err := bg.ImportSnapshot(snap); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"nodes": len(snap.Nodes),
		"edges": len(snap.Edges),
	}).Info("import complete")
	fmt.Printf("Imported %d nodes, %d edges into %s\n", len(snap.Nodes), len(snap.Edges), dataDir)
	return nil
}
