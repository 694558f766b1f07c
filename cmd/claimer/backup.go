package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michal-palko/smart-claimer/internal/app"
	"github.com/michal-palko/smart-claimer/internal/encryption"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Encrypted snapshots of the entry store",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Upload a snapshot to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("backup")
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.Backup()
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		success("Uploaded %s", name)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("backup-list")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Snapshotter()
		if err != nil {
			return err
		}
		snaps, err := s.List()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, snap := range snaps {
			fmt.Printf("%s  %s\n", snap.TakenAt.Local().Format("2006-01-02 15:04:05"), snap.Name)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [NAME]",
	Short: "Replace the entry store with a snapshot (default latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "latest"
		if len(args) == 1 {
			name = args[0]
		}
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm(fmt.Sprintf("Replace the local entry store with snapshot %s?", name)) {
			return fmt.Errorf("restore cancelled")
		}

		a, err := newApp("restore")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		restored, err := a.Restore(name, passphrase)
		if err != nil {
			if errors.Is(err, encryption.ErrWrongPassphrase) {
				return fmt.Errorf("restore failed: wrong passphrase")
			}
			if errors.Is(err, app.ErrNoSnapshots) {
				return fmt.Errorf("restore failed: vault is empty")
			}
			return fmt.Errorf("restore failed: %w", err)
		}
		success("Restored %s", restored)
		return nil
	},
}

func init() {
	backupRestoreCmd.Flags().BoolP("yes", "y", false, "Do not ask before replacing the store")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}
