package commands

import (
	"github.com/spf13/cobra"
)

var multiCmd = &cobra.Command{
	Use:   "multi <seeds>",
	Short: "Crawl with a worker pool from one or more seeds",
	Long: `Crawl with a pool of workers. The seed argument accepts
file:<path>, single:<url>, multi:"<url>","<url>", or a bare token that is
treated as a file if it exists and as a URL otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threads, _ := cmd.Flags().GetInt("threads")
		return runCrawl(cmd, "multi", args[0], threads)
	},
}

func init() {
	multiCmd.Flags().Int("threads", 0, "worker count (0 = one per CPU core)")
	multiCmd.Flags().String("config", "", "path to a config file")
	multiCmd.Flags().String("override-log-level", "", "override the configured log level")
}
