package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/michal-palko/smart-claimer/internal/app"
	"github.com/michal-palko/smart-claimer/internal/config"
)

var (
	flagAutor   string
	flagVerbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	path := defaults["config_path"]

	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, path, fmt.Errorf("applying environment: %w", err)
	}
	return cfg, path, nil
}

// newApp reads the config and creates a ClaimerApp. The caller must defer app.Close().
// component identifies the CLI command being run in the log.
func newApp(component string) (*app.ClaimerApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewClaimerApp(cfg, app.Options{Component: component, Verbose: flagVerbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// requireAutor returns the acting author or an error naming the flag.
func requireAutor() (string, error) {
	if flagAutor == "" {
		return "", fmt.Errorf("author required: pass --autor or set CLAIMER_AUTHOR")
	}
	return flagAutor, nil
}

var rootCmd = &cobra.Command{
	Use:           "claimer",
	Short:         "Log work time against JIRA tasks and submit it to MetaApp",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API for the entry form",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		a, err := newApp("serve")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(cmd.Context(), addr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAutor, "autor", os.Getenv("CLAIMER_AUTHOR"), "Acting author (default $CLAIMER_AUTHOR)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Write debug records to the log")

	serveCmd.Flags().String("addr", "", "Listen address (default from config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(jiraCmd)
	rootCmd.AddCommand(backupCmd)
}
