package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var welcomeCmd = &cobra.Command{
	Use:   "welcome",
	Short: "Show a short introduction to atra",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(`atra - a polite, durable web crawler

Quick start:
  atra single https://example.com

Every run creates a session directory containing:
  worker_<i>/*.warc   the archived pages
  big_files/          bodies too large to embed in a WARC record
  index.db            the slim result index, keyed by URL
  link_state.db       per-URL crawl lifecycle state
  queue.dat           the durable URL queue

A crawl interrupted with Ctrl-C can be resumed against the same stores:
already-stored pages are not refetched.

Generate a config file with every option at its default:
  atra --generate-example-config > atra.yaml`)
		return nil
	},
}
