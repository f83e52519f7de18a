package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luigisaetta/oraculum/pkg/audit"
	"github.com/luigisaetta/oraculum/pkg/config"
)

func newAuditCmd() *cobra.Command {
	var configPath string
	var convID string
	var classification string
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent entries from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("audit trail is disabled in %s", configPath)
			}

			l, err := audit.New(cfg.Audit)
			if err != nil {
				return fmt.Errorf("open audit log: %w", err)
			}
			defer func() { _ = l.Close() }()

			entries, err := l.Recent(context.Background(), audit.QueryOptions{
				ConvID:         convID,
				Classification: classification,
				Limit:          limit,
			})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No audit entries.")
				return nil
			}
			for _, e := range entries {
				hit := " "
				if e.CacheHit {
					hit = "*"
				}
				fmt.Printf("%s  %-15s %s [%s] %4dms  %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					e.Classification, hit, e.ConvID, e.LatencyMs, e.RequestText)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "oraculum.yaml", "path to config file")
	cmd.Flags().StringVar(&convID, "conv", "", "filter by conversation id")
	cmd.Flags().StringVar(&classification, "label", "", "filter by classification label")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")
	return cmd
}
