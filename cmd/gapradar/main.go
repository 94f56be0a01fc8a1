package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gapradar",
		Short:         "Score market demand for a niche from community, search and content signals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(scoreCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(discoverCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func scoreCmd() *cobra.Command {
	var (
		file       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a JSON signal payload (from --file or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, file, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "payload file (default: stdin)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var (
		sources    []string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <niche>",
		Short: "Collect items for a niche and print its demand report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, sources, limit, jsonOutput)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to collect (e.g., reddit,hn,youtube,rss)")
	cmd.Flags().IntVar(&limit, "limit", 0, "items per source (default: from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runsCmd() *cobra.Command {
	var (
		niche      string
		minScore   int
		limit      int
		byNiche    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if byNiche {
				return runNicheCounts(cmd, jsonOutput)
			}
			return runRuns(cmd, niche, minScore, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&niche, "niche", "", "only runs for this niche")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "minimum unified score")
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to show")
	cmd.Flags().BoolVar(&byNiche, "by-niche", false, "show run counts per niche instead")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func discoverCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "discover <niche>",
		Short: "Find subreddits related to a niche, largest first",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, args, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max subreddits to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, false)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, true)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
