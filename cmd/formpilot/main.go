package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"formpilot/internal/automation"
	"formpilot/internal/config"
	"formpilot/internal/declaration"
	"formpilot/internal/logging"
	"formpilot/internal/server"
	"formpilot/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// submit flags
	headless  bool
	timeoutMs int
	retries   int
	outQR     string

	logger *zap.Logger
)

// errRunFailed marks an exit-code-1 outcome that was already reported on
// stdout, so main must not print it again.
var errRunFailed = errors.New("run failed")

var rootCmd = &cobra.Command{
	Use:           "formpilot",
	Short:         "formpilot - electronic customs declaration automation",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `formpilot automates the Indonesian electronic customs declaration
portal on behalf of a traveler: it validates the declaration record, drives
the portal form in a headless browser and returns the confirmation QR code,
or a typed failure with a manual fallback link.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (submit, health, payment webhook)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		records, err := store.New(cfg.Store)
		if err != nil {
			return fmt.Errorf("open record store: %w", err)
		}
		defer func() { _ = records.Close() }()

		orch := automation.New(cfg.AutomationPipeline())
		orch.SubscribeProgress(func(ev automation.ProgressEvent) {
			logging.Automation("progress %d%% step=%s %s", ev.Progress, ev.Step, ev.Message)
		})

		srv := server.New(cfg, orch, records, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if configPath != "" {
			watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
				// Applies to runs started after the swap; server address and
				// store backend changes still need a restart.
				orch.UpdateConfig(next.AutomationPipeline())
				logger.Info("configuration reloaded", zap.String("path", configPath))
			})
			if err == nil {
				if err := watcher.Start(ctx); err != nil {
					logger.Warn("config watcher failed to start", zap.Error(err))
				} else {
					defer watcher.Stop()
				}
			}
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return srv.Stop()
		case err := <-errCh:
			return err
		}
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit [record.json]",
	Short: "Submit one declaration record from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rec, err := readRecord(args[0])
		if err != nil {
			return err
		}

		opts := automation.Options{
			TimeoutMs: timeoutMs,
			Retries:   retries,
			OnProgress: func(ev automation.ProgressEvent) {
				fmt.Fprintf(os.Stderr, "[%3d%%] %-13s %s\n", ev.Progress, ev.Step, ev.Message)
			},
		}
		if cmd.Flags().Changed("headless") {
			opts.Headless = &headless
		}

		orch := automation.New(cfg.AutomationPipeline())
		res := orch.Run(cmd.Context(), rec, opts)

		if res.QRCode != nil && outQR != "" {
			if err := writeQRImage(outQR, res.QRCode.ImageData); err != nil {
				logger.Warn("could not write QR image", zap.Error(err))
			} else {
				fmt.Fprintf(os.Stderr, "QR code written to %s\n", outQR)
			}
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		if !res.Success {
			return errRunFailed
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [record.json]",
	Short: "Validate a declaration record without submitting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := readRecord(args[0])
		if err != nil {
			return err
		}

		v := declaration.Validate(rec)
		rd := declaration.ShouldRedirect(rec)

		out, err := json.MarshalIndent(map[string]any{
			"valid":          v.Valid,
			"missingFields":  v.MissingFields,
			"shouldRedirect": rd.ShouldRedirect,
			"redirectReason": rd.Reason,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		if !v.Valid {
			return errRunFailed
		}
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(cfg.Logging.Workdir, cfg.Logging.Debug || verbose, cfg.Logging.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readRecord(path string) (*declaration.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", path, err)
	}
	var rec declaration.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse record %s: %w", path, err)
	}
	return &rec, nil
}

// writeQRImage decodes a base64 data URL into a PNG file.
func writeQRImage(path, dataURL string) error {
	_, b64, found := strings.Cut(dataURL, ";base64,")
	if !found {
		b64 = dataURL
	}
	img, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("decode QR image: %w", err)
	}
	return os.WriteFile(path, img, 0o644)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	submitCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	submitCmd.Flags().IntVar(&timeoutMs, "timeout", 0, "overall run budget in milliseconds (0 = config default)")
	submitCmd.Flags().IntVar(&retries, "retries", 0, "retry budget for gated fields (0 = config default)")
	submitCmd.Flags().StringVar(&outQR, "out-qr", "", "write the confirmation QR code PNG to this path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(validateCmd)
}

// flushLogs runs on every exit path; cobra skips PersistentPostRun when a
// RunE returns an error.
func flushLogs() {
	if logger != nil {
		_ = logger.Sync()
	}
	logging.CloseAll()
}

func main() {
	err := rootCmd.Execute()
	flushLogs()
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
