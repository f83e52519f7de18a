package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luigisaetta/oraculum/pkg/audit"
	"github.com/luigisaetta/oraculum/pkg/cache"
	"github.com/luigisaetta/oraculum/pkg/classify"
	"github.com/luigisaetta/oraculum/pkg/config"
	"github.com/luigisaetta/oraculum/pkg/conversation"
	"github.com/luigisaetta/oraculum/pkg/dispatch"
	"github.com/luigisaetta/oraculum/pkg/llm"
	"github.com/luigisaetta/oraculum/pkg/router"
	"github.com/luigisaetta/oraculum/pkg/server"
	"github.com/luigisaetta/oraculum/pkg/sqlagent"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			model := llm.New(cfg.LLM, cfg.Verbose)
			c := cache.New(model, cfg.Cache.MaxSize)
			store := conversation.New(cfg.Conversation.MaxMessages, cfg.Verbose)

			agent, err := sqlagent.New(cfg.Agent, model, cfg.Verbose)
			if err != nil {
				return fmt.Errorf("init sql agent: %w", err)
			}
			defer func() { _ = agent.Close() }()

			auditor, err := audit.New(cfg.Audit)
			if err != nil {
				return fmt.Errorf("init audit log: %w", err)
			}
			defer func() { _ = auditor.Close() }()

			handlers := dispatch.NewHandlerSet(model, c, agent, store, cfg.Cache.DistanceThreshold, cfg.Verbose)
			dispatcher, err := dispatch.New(handlers, cfg.Verbose)
			if err != nil {
				return fmt.Errorf("init dispatcher: %w", err)
			}
			rt := router.New(classify.New(model, cfg.Verbose), dispatcher, cfg.Verbose)

			srv := server.New(cfg, rt, store, c, auditor)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("starting oraculum with config: %s", configPath)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "oraculum.yaml", "path to config file")
	return cmd
}
