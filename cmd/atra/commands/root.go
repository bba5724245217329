// Package commands implements the CLI commands for atra.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FranksOps/atra/internal/config"
)

var generateExampleConfig bool

var rootCmd = &cobra.Command{
	Use:   "atra",
	Short: "Polite, durable, multi-worker web crawler with WARC output",
	Long: `Atra crawls the web from one or more seed URLs, politely: one
in-flight fetch per origin, robots.txt honored, per-host depth budgets.
Fetched pages land in content-addressed WARC archives with an index
database keyed by URL, so a crawl survives restarts and results can be
read back without re-parsing archives.

Examples:
  # Crawl one site with defaults
  atra single https://example.com

  # Crawl several seeds with 8 workers and a config file
  atra multi --threads 8 --config atra.yaml 'multi:"https://a.example","https://b.example"'

  # Crawl every URL listed in a file
  atra multi file:seeds.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateExampleConfig {
			if err := config.WriteExample(os.Stdout); err != nil {
				return fail(ExitExampleConfig, "generating example config: %v", err)
			}
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&generateExampleConfig, "generate-example-config", false, "print an example configuration file and exit")
	rootCmd.PersistentFlags().String("session-name", "atra", "name embedded in archive file names")
	rootCmd.PersistentFlags().String("agent", "", "user agent to declare (and match against robots.txt)")
	rootCmd.PersistentFlags().Uint64("depth", 0, "cross-origin depth limit (0 = unbounded)")
	rootCmd.PersistentFlags().Bool("absolute", false, "interpret --depth as total hops from the seed")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-request timeout (0 = config default)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-to-file", false, "also write logs into the session directory")

	rootCmd.AddCommand(singleCmd)
	rootCmd.AddCommand(multiCmd)
	rootCmd.AddCommand(welcomeCmd)
}

// Execute runs the root command and maps errors to process exit codes.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 1
	}
	return ExitOK
}
