package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/luigisaetta/oraculum/pkg/models"
)

func newCacheCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the semantic SQL cache of a running server",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats models.CacheStats
			if err := getJSON(serverURL+"/cache/stats", &stats); err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nHits:    %d\nMisses:  %d\n", stats.Entries, stats.Hits, stats.Misses)
			for _, d := range stats.Detail {
				fmt.Printf("  [%d hits] %s\n", d.AccessCount, d.UserRequest)
			}
			return nil
		},
	}

	failedCmd := &cobra.Command{
		Use:   "failed",
		Short: "List requests whose SQL generation failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				FailedRequests []string `json:"failed_requests"`
			}
			if err := getJSON(serverURL+"/cache/failed", &out); err != nil {
				return err
			}
			if len(out.FailedRequests) == 0 {
				fmt.Println("No failed requests.")
				return nil
			}
			for _, r := range out.FailedRequests {
				fmt.Println(r)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "oraculum server URL")
	cmd.AddCommand(statsCmd, failedCmd)
	return cmd
}

// getJSON fetches a JSON endpoint from the running server.
func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("contact server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
