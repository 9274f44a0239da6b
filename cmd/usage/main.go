// Usage is a command-line host for the usage telemetry client. It sends
// individual hits (screen views, events, social interactions, timings,
// exceptions) to a collection endpoint, and manages the opt-in/opt-out
// state persisted for an application.
//
// Usage:
//
//	usage --config config.yaml send event build succeeded --value 3
//	usage --config config.yaml opt-out
//
// Configuration is provided via YAML file specifying:
//   - Application identity (name, version)
//   - Analytics settings (tracking ID, endpoint override, opt-in mode)
//   - Optional OpenTelemetry tracing of hit deliveries
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/telemetrykit/usage"
	"github.com/telemetrykit/usage/internal/config"
	"github.com/telemetrykit/usage/internal/logging"
	"github.com/telemetrykit/usage/internal/props"
	"github.com/telemetrykit/usage/internal/telemetry"
)

const programName = "usage"

var (
	configFile string
	debug      bool
	dryRun     bool
)

// setupLogging initializes the logging system with the configured log file.
// If debug mode is enabled, sets the log level to DEBUG for verbose output.
func setupLogging(cfg *config.Config, debugMode bool) error {
	if err := logging.PrepareLogs(cfg.Log.File); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if debugMode {
		log.SetLevel(log.DebugLevel)
		log.Debug("Debug mode enabled")
	}
	return nil
}

// newTelemetryManager builds the tracing manager when tracing is enabled in
// configuration, nil otherwise.
func newTelemetryManager(cfg *config.Config) *telemetry.Manager {
	if !cfg.OpenTelemetry.Enabled {
		return nil
	}
	return telemetry.NewManager(telemetry.Config{
		Enabled:         cfg.OpenTelemetry.Enabled,
		Endpoint:        cfg.OpenTelemetry.Endpoint,
		Insecure:        cfg.OpenTelemetry.Insecure,
		SamplingRate:    cfg.OpenTelemetry.SamplingRate,
		ServiceName:     cfg.App.Name,
		ServiceVersion:  cfg.App.Version,
		CollectEndpoint: cfg.Analytics.Endpoint,
	})
}

// newSession builds the session for a one-shot command. With --dry-run the
// session logs hits instead of posting them.
func newSession(cfg *config.Config, tm *telemetry.Manager) (*usage.Session, error) {
	var opts []usage.SessionOption
	if cfg.Analytics.OptIn {
		opts = append(opts, usage.WithOptMode(usage.OptIn))
	}
	if tm != nil && tm.IsEnabled() {
		opts = append(opts, usage.WithTracerProvider(tm.TracerProvider()))
	}

	if dryRun {
		return usage.NewSession(
			cfg.Analytics.TrackingID, cfg.App.Name, cfg.App.Version,
			usage.LogTransport{}, opts...)
	}
	return usage.NewCommandLineSession(
		cfg.Analytics.TrackingID, cfg.App.Name, cfg.App.Version,
		cfg.Analytics.Endpoint, opts...)
}

// runSend wraps the common lifecycle of a one-shot send command: load
// config, set up logging and tracing, create the session, run the send,
// drain, and shut everything down in order.
func runSend(send func(ctx context.Context, s *usage.Session) error) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, debug); err != nil {
		return err
	}

	ctx := context.Background()

	tm := newTelemetryManager(cfg)
	if tm != nil {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := tm.Initialize(initCtx); err != nil {
			log.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		}
	}

	session, err := newSession(cfg, tm)
	if err != nil {
		return err
	}

	if err := send(ctx, session); err != nil {
		return err
	}

	// Bound how long this short-lived process waits for the ping. Hits
	// still in flight when the timeout fires are abandoned, not cancelled.
	session.WaitForLastPing(time.Duration(cfg.Analytics.DrainTimeoutMillis) * time.Millisecond)
	if err := session.Close(); err != nil {
		log.Warnf("Session close warning: %v", err)
	}

	if tm != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := tm.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Telemetry shutdown warning: %v", err)
		}
	}
	return nil
}

// setEnabled flips the persisted enablement flag without sending anything.
func setEnabled(value bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	store, err := props.Open(cfg.App.Name)
	if err != nil {
		return fmt.Errorf("cannot open settings: %w", err)
	}
	if err := store.StoreEnabled(value); err != nil {
		return err
	}
	fmt.Printf("telemetry for %s is now %s (settings: %s)\n",
		cfg.App.Name, map[bool]string{true: "enabled", false: "disabled"}[value], store.Path())
	return nil
}

func newSendCommand() *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send a single telemetry hit",
	}

	sendCmd.AddCommand(&cobra.Command{
		Use:   "screen <name>",
		Short: "Send a screen view hit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(func(ctx context.Context, s *usage.Session) error {
				return s.SendScreenView(ctx, args[0])
			})
		},
	})

	var eventLabel string
	var eventValue int64
	eventCmd := &cobra.Command{
		Use:   "event <category> <action>",
		Short: "Send a custom event hit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []usage.HitOption
			if cmd.Flags().Changed("label") {
				opts = append(opts, usage.WithLabel(eventLabel))
			}
			if cmd.Flags().Changed("value") {
				opts = append(opts, usage.WithValue(eventValue))
			}
			return runSend(func(ctx context.Context, s *usage.Session) error {
				return s.SendEvent(ctx, args[0], args[1], opts...)
			})
		},
	}
	eventCmd.Flags().StringVar(&eventLabel, "label", "", "Event label")
	eventCmd.Flags().Int64Var(&eventValue, "value", 0, "Event value (non-negative)")
	sendCmd.AddCommand(eventCmd)

	sendCmd.AddCommand(&cobra.Command{
		Use:   "social <network> <action> <target>",
		Short: "Send a social interaction hit",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(func(ctx context.Context, s *usage.Session) error {
				return s.SendSocial(ctx, args[0], args[1], args[2])
			})
		},
	})

	var timingCategory, timingLabel string
	timingCmd := &cobra.Command{
		Use:   "timing <variable> <millis>",
		Short: "Send a timing hit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			millis, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || millis < 0 {
				return fmt.Errorf("invalid timing value: %s", args[1])
			}
			var opts []usage.HitOption
			if cmd.Flags().Changed("category") {
				opts = append(opts, usage.WithCategory(timingCategory))
			}
			if cmd.Flags().Changed("label") {
				opts = append(opts, usage.WithLabel(timingLabel))
			}
			return runSend(func(ctx context.Context, s *usage.Session) error {
				return s.SendTiming(ctx, args[0], time.Duration(millis)*time.Millisecond, opts...)
			})
		},
	}
	timingCmd.Flags().StringVar(&timingCategory, "category", "", "Timing category")
	timingCmd.Flags().StringVar(&timingLabel, "label", "", "Timing label")
	sendCmd.AddCommand(timingCmd)

	var fatal bool
	var noSanitize bool
	exceptionCmd := &cobra.Command{
		Use:   "exception <description>",
		Short: "Send an exception hit",
		Long: "Send an exception hit. The description is scrubbed of local " +
			"file paths and truncated to 100 characters before transmission.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := args[0]
			if !noSanitize {
				description = usage.SanitizeStacktrace(description, true)
			}
			return runSend(func(ctx context.Context, s *usage.Session) error {
				return s.SendException(ctx, description, fatal)
			})
		},
	}
	exceptionCmd.Flags().BoolVar(&fatal, "fatal", false, "Mark the exception as fatal")
	exceptionCmd.Flags().BoolVar(&noSanitize, "no-sanitize", false, "Skip stacktrace sanitizing")
	sendCmd.AddCommand(exceptionCmd)

	return sendCmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted telemetry settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			store, err := props.Open(cfg.App.Name)
			if err != nil {
				return fmt.Errorf("cannot open settings: %w", err)
			}
			enabled, stored := store.LoadEnabled()
			state := "default"
			if stored {
				state = strconv.FormatBool(enabled)
			}
			fmt.Printf("settings:  %s\n", store.Path())
			fmt.Printf("clientId:  %s\n", store.ClientID())
			fmt.Printf("enabled:   %s\n", state)
			fmt.Printf("firstRun:  %v\n", store.FirstRun())
			return nil
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Best-effort telemetry client",
		Long:  "Usage formats and dispatches telemetry hits to a collection endpoint on a best-effort basis",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (required)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log hits instead of sending them")
	_ = rootCmd.MarkPersistentFlagRequired("config")

	rootCmd.AddCommand(newSendCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "opt-in",
		Short: "Enable telemetry for the configured application",
		RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(true) },
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "opt-out",
		Short: "Disable telemetry for the configured application",
		RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(false) },
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
