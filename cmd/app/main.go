package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"runcell/config"
	"runcell/internal/history"
	"runcell/internal/interpreter"
	"runcell/internal/render"
	"runcell/internal/session"
	"runcell/internal/timeutil"
	"runcell/internal/toolstream"
	"runcell/pkg/db"
	"runcell/updater"
	"runcell/version"
)

var rootCmd = &cobra.Command{
	Use:           "runcell",
	Short:         "Run code in persistent per-language interpreters",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run [language] [code]",
	Short: "Execute code and stream its output",
	Long: `Execute code in the given language and stream output, active-line
progress and errors to the terminal. Code is read from stdin when not
given as an argument.

Examples:
  runcell run python 'print(40 + 2)'
  echo 'ls -la' | runcell run bash
  runcell run python < script.py`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg)

		language := args[0]
		code, err := readCode(args)
		if err != nil {
			return err
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		noHistory, _ := cmd.Flags().GetBool("no-history")
		quiet, _ := cmd.Flags().GetBool("quiet")

		var recorder session.Recorder
		if !noHistory && !cfg.HistoryDisabled {
			store, closeStore, err := openStore()
			if err != nil {
				slog.Warn("history disabled", "error", err)
			} else {
				defer closeStore()
				recorder = store
			}
		}

		s := session.New(session.Options{
			Recorder: recorder,
			Runners:  runnerOptions(cfg, timeout),
		})
		defer s.Close()

		// First Ctrl-C interrupts the call, second one tears down.
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			<-sigChan
			s.Stop()
			<-sigChan
			s.Close()
			os.Exit(1)
		}()

		if !quiet {
			showCode(language, code)
		}

		events, err := s.Run(cmd.Context(), language, code)
		if err != nil {
			return err
		}

		failed := false
		for ev := range events {
			switch ev.Type {
			case interpreter.EventOutput:
				fmt.Println(ev.Content)
			case interpreter.EventActiveLine:
				if !quiet {
					fmt.Fprintf(os.Stderr, "· line %d\n", ev.Line)
				}
			case interpreter.EventError:
				failed = true
				fmt.Fprintln(os.Stderr, ev.Content)
			}
		}
		if failed {
			os.Exit(1)
		}
		return nil
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages",
	Run: func(cmd *cobra.Command, args []string) {
		for _, lang := range interpreter.Languages() {
			if aliases := lang.Aliases(); len(aliases) > 0 {
				fmt.Printf("%-12s (%s)\n", lang.Name(), strings.Join(aliases, ", "))
			} else {
				fmt.Println(lang.Name())
			}
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		sessionID, _ := cmd.Flags().GetString("session")

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		var runs []history.Run
		if sessionID != "" {
			runs, err = store.BySession(ctx, sessionID)
		} else {
			runs, err = store.Recent(ctx, limit)
		}
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		now := time.Now()
		for _, run := range runs {
			fmt.Printf("%-12s %-8s %8s  %-16s %s\n",
				run.Language,
				run.Status,
				timeutil.FormatDuration(run.Duration),
				timeutil.FormatRelativeTime(run.StartedAt, now),
				firstLine(run.Code))
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Version information and update commands",
}

var versionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("runcell version %s\n", version.Get())
	},
}

var versionCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check for available updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := updater.CheckForUpdates(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}

		fmt.Printf("Current version: %s\n", info.CurrentVersion)
		fmt.Printf("Latest version:  %s\n", info.LatestVersion)
		if info.Available {
			fmt.Println("\nUpdate available. Run 'runcell version update' to install it.")
		} else {
			fmt.Println("\nYou are running the latest version.")
		}
		return nil
	},
}

var versionUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update to the latest version",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := updater.CheckForUpdates(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}
		if !info.Available {
			fmt.Println("You are already running the latest version.")
			return nil
		}

		fmt.Printf("Updating %s -> %s...\n", info.CurrentVersion, info.LatestVersion)
		if err := updater.DownloadAndInstall(cmd.Context(), info); err != nil {
			return fmt.Errorf("failed to install update: %w", err)
		}
		fmt.Printf("Updated to version %s\n", info.LatestVersion)
		return nil
	},
}

// loadConfig reads the config file, honoring --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFrom(path)
	}
	if err := config.EnsureConfigExists(); err != nil {
		slog.Warn("failed to write default config", "error", err)
	}
	return config.Load()
}

// setupLogging fans the structured log out to stderr and, when configured,
// a log file.
func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			slog.Warn("failed to open log file", "path", cfg.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
		}
	}
	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))
}

// runnerOptions converts the file config into per-language runner options.
// A --timeout flag overrides every language.
func runnerOptions(cfg *config.Config, timeout time.Duration) map[string]interpreter.RunnerOptions {
	opts := make(map[string]interpreter.RunnerOptions, len(cfg.Languages))
	for name, lang := range cfg.Languages {
		opts[name] = interpreter.RunnerOptions{
			StartCommand: lang.StartCommand,
			Timeout:      time.Duration(lang.Timeout),
			SkipLines:    lang.SkipLines,
		}
	}
	if timeout > 0 {
		for _, lang := range interpreter.Languages() {
			o := opts[lang.Name()]
			o.Timeout = timeout
			opts[lang.Name()] = o
		}
	}
	return opts
}

func openStore() (*history.Store, func(), error) {
	dbPath, err := config.GetDatabasePath()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	store := history.NewStore(database)
	if err := store.Migrate(); err != nil {
		database.Close()
		return nil, nil, err
	}
	return store, func() { database.Close() }, nil
}

// readCode takes code from the second argument or, failing that, stdin.
func readCode(args []string) (string, error) {
	if len(args) == 2 {
		return args[1], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read code from stdin: %w", err)
	}
	code := strings.TrimRight(string(data), "\n")
	if code == "" {
		return "", fmt.Errorf("no code given: pass it as an argument or on stdin")
	}
	return code, nil
}

// showCode renders the code about to run through the streaming block
// renderer, so the run command shares the display path used for tool calls.
func showCode(language, code string) {
	block := render.NewCodeBlock(os.Stderr)
	block.Consume(toolstream.FieldDelta{Key: toolstream.KeyLanguage, Delta: language})
	block.Consume(toolstream.FieldDelta{Key: toolstream.KeyCode, Delta: code})
	block.Close()
}

func firstLine(code string) string {
	line, _, _ := strings.Cut(code, "\n")
	if len(line) > 60 {
		line = line[:57] + "..."
	}
	return line
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	runCmd.Flags().Duration("timeout", 0, "Per-call timeout (overrides config)")
	runCmd.Flags().Bool("no-history", false, "Don't record this run")
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress code echo and line progress")

	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	historyCmd.Flags().String("session", "", "Show runs for one session ID")

	versionCmd.AddCommand(versionShowCmd)
	versionCmd.AddCommand(versionCheckCmd)
	versionCmd.AddCommand(versionUpdateCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
