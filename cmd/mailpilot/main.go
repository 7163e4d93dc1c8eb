package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arenvik/mailpilot/internal/api"
	"github.com/arenvik/mailpilot/internal/auth"
	"github.com/arenvik/mailpilot/internal/chat"
	"github.com/arenvik/mailpilot/internal/session"
	"github.com/arenvik/mailpilot/internal/tui"
	"github.com/arenvik/mailpilot/pkg/config"
)

var version = "0.3.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "mailpilot",
		Short: "Mailpilot - chat with an AI assistant about your inbox",
		Long: `Mailpilot is a terminal chat client for an email-management assistant.
Sign in with Google, then ask for your latest emails, summaries, replies,
or deletions in plain language.`,
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(
		loginCmd(),
		historyCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired components shared by every command.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *session.Store
	client     *api.Client
	controller *chat.Controller
	gate       *chat.Gate
	flow       *auth.Flow
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store := session.NewStore(session.NewStateFile(cfg.StateFile()), logger)
	client := api.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	controller := chat.NewController(store, client, cfg.Chat.HistoryLimit, logger)
	gate := chat.NewGate(controller, logger)
	flow := auth.NewFlow(client, store, cfg.Auth.CallbackAddr, cfg.Auth.OpenBrowser, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		client:     client,
		controller: controller,
		gate:       gate,
		flow:       flow,
	}, nil
}

// newLogger writes to the configured log file. Stderr would tear the TUI,
// so the default lives next to the state file.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(cfg.State.Dir, "mailpilot.log")
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{logFile}
	zcfg.ErrorOutputPaths = []string{logFile}
	return zcfg.Build()
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	model := tui.New(a.store, a.controller, a.gate, a.flow, a.logger)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google without starting the chat UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			user, err := a.flow.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", user.Email)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the recent conversation from the backend log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			user := a.store.User()
			if user == nil {
				return fmt.Errorf("not signed in; run `mailpilot login` first")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Backend.Timeout)
			defer cancel()

			msgs, err := a.client.History(ctx, user.ID, limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format(time.RFC3339), m.Role, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum messages to fetch")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mailpilot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("mailpilot", version)
		},
	}
}
