package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docrag/internal/bridge"
	"docrag/internal/config"
	"docrag/internal/logger"
	"docrag/internal/tui"
)

var (
	cfgFile string
	verbose bool

	cfg     *config.AppConfig
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Ask questions about your PDF, DOCX and text documents",
	Long: `docrag indexes documents into a vector store and answers questions
about them with a large language model, using the most similar passages
as context. Without a subcommand it opens an interactive chat.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default ./docrag.yaml or ~/.config/docrag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if cfgFile == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfgPath = cfgFile
		cfg, err = config.Load(cfgFile)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}
	if err := logger.Init("", verbose || cfg.Log.Verbose); err != nil {
		return err
	}
	logger.Debug("using config %s", cfgPath)
	return nil
}

// runChat starts the TUI. Logs go to the configured file, or nowhere, while
// the TUI owns the terminal.
func runChat(cmd *cobra.Command, _ []string) error {
	if cfg.Log.File != "" {
		if err := logger.Init(cfg.Log.File, verbose || cfg.Log.Verbose); err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer logger.Close()
	} else {
		logger.SetOutput(io.Discard)
		defer logger.SetOutput(os.Stderr)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}
	svc.Setup(ctx)

	b := bridge.New(ctx)
	_, err = tea.NewProgram(tui.New(svc, b), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	cancel()
	b.Wait()
	return err
}
