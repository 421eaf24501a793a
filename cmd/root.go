package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/sleuth/internal/config"
	"github.com/zjrosen/sleuth/internal/log"
	uichat "github.com/zjrosen/sleuth/internal/ui/chat"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

const (
	localConfigPath = ".sleuth/config.yaml"
	defaultLogPath  = "sleuth-debug.log"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config

	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "sleuth",
	Short: "A terminal client for a conversational data-analysis agent",
	Long: `sleuth talks to a data-analysis agent over a live event channel.
Ask questions, watch the agent think and call tools, approve or reject the
plans it proposes, and browse the dashboards, reports and widgets it generates.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
		}
	},
	RunE: runTUI,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/sleuth/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write a debug log (also SLEUTH_DEBUG)")
	rootCmd.PersistentFlags().StringP("server", "s", "",
		"agent base URL, e.g. http://localhost:5000")

	_ = viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("server.url", defaults.Server.URL)
	viper.SetDefault("channel.path", defaults.Channel.Path)
	viper.SetDefault("channel.transports", defaults.Channel.Transports)
	viper.SetDefault("channel.handshake_timeout", defaults.Channel.HandshakeTimeout)
	viper.SetDefault("channel.reconnection", defaults.Channel.Reconnection)
	viper.SetDefault("channel.reconnection_attempts", defaults.Channel.ReconnectionAttempts)
	viper.SetDefault("channel.reconnection_delay", defaults.Channel.ReconnectionDelay)
	viper.SetDefault("channel.reconnection_delay_max", defaults.Channel.ReconnectionDelayMax)
	viper.SetDefault("session.tab_env", defaults.Session.TabEnv)
	viper.SetDefault("session.db_path", defaults.Session.DBPath)
	viper.SetDefault("documents.cache_ttl", defaults.Documents.CacheTTL)
	viper.SetDefault("documents.request_timeout", defaults.Documents.RequestTimeout)
	viper.SetDefault("ui.markdown_style", defaults.UI.MarkdownStyle)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("flags", defaults.Flags)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .sleuth/config.yaml (current directory)
		// 2. ~/.config/sleuth/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "sleuth"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create the default user config.
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			home, _ := os.UserHomeDir()
			defaultPath := filepath.Join(home, ".config", "sleuth", "config.yaml")
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// setup enables debug logging and validates the loaded configuration.
func setup(_ *cobra.Command, _ []string) error {
	if os.Getenv("SLEUTH_DEBUG") != "" || debugFlag {
		cleanup, err := initLogging(os.Getenv, os.Stderr)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		logCleanup = cleanup
		log.Info(log.CatConfig, "sleuth starting", "version", version, "config", viper.ConfigFileUsed())
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// initLogging opens the debug log named by SLEUTH_LOG. A path of "-"
// logs to stderr, which suits headless commands such as ask.
// SLEUTH_LOG_LEVEL raises the minimum level.
func initLogging(getenv func(string) string, stderr io.Writer) (func(), error) {
	level := log.ParseLevel(getenv("SLEUTH_LOG_LEVEL"))
	logPath := getenv("SLEUTH_LOG")
	switch logPath {
	case "-":
		log.InitWriter(stderr, level)
		return func() {}, nil
	case "":
		logPath = defaultLogPath
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return nil, err
	}
	log.SetMinLevel(level)
	return cleanup, nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	// A failed first connect is not fatal: the channel keeps retrying and
	// the view shows the disconnected state.
	if err := rt.client.Start(ctx); err != nil {
		log.Warn(log.CatConn, "Initial connect failed", "error", err)
	}
	warnEphemeral(cmd.ErrOrStderr(), rt.identity)

	model := uichat.New(ctx, rt.client, cfg.UI.MarkdownStyle)
	p := tea.NewProgram(model, tea.WithAltScreen())
	stop := releaseOnHangup(ctx, rt.identity, p.Quit)
	defer stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
