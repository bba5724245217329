package commands

import (
	"github.com/spf13/cobra"
)

var singleCmd = &cobra.Command{
	Use:   "single <seed>",
	Short: "Crawl starting from one seed with a single worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(cmd, "single", args[0], 1)
	},
}

func init() {
	singleCmd.Flags().String("config", "", "path to a config file")
}
