package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michal-palko/smart-claimer/internal/app"
	"github.com/michal-palko/smart-claimer/internal/config"
	"github.com/michal-palko/smart-claimer/internal/encryption"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Next: set jira and metaapp credentials, then run 'claimer config keys'.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Listen:     %s\n", cfg.Server.Addr)
		fmt.Printf("Database:   %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("JIRA:       %s\n", orDisabled(cfg.Jira.URL))
		metaapp := cfg.MetaApp.Type
		if cfg.MetaApp.Type == "postgres" {
			metaapp = fmt.Sprintf("postgres %s:%d/%s (%s)", cfg.MetaApp.Host, cfg.MetaApp.Port, cfg.MetaApp.Name, cfg.MetaApp.Schema)
		}
		fmt.Printf("MetaApp:    %s\n", orDisabled(metaapp))
		fmt.Printf("OpenAI:     %s (key set: %t)\n", cfg.OpenAI.Model, cfg.OpenAI.APIKey != "")
		fmt.Printf("Vault:      %s %s\n", cfg.Vault.Type, cfg.Vault.Name)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the snapshot encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("keys")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.SetupKeys(passphrase); err != nil {
			if errors.Is(err, encryption.ErrKeysExist) {
				return fmt.Errorf("%w: remove them first if you really want new keys", err)
			}
			return err
		}
		success("Key pair created. Keep the passphrase safe: restores need it.")
		return nil
	},
}

func orDisabled(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
}
