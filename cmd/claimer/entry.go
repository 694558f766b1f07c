package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

const dateLayout = "2006-01-02"

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage time entries",
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := dateFlag(cmd, "from")
		if err != nil {
			return err
		}
		to, err := dateFlag(cmd, "to")
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp("entry-list")
		if err != nil {
			return err
		}
		defer a.Close()

		filter := claimer.EntryFilter{From: from, To: to}
		if !all {
			filter.Autor = flagAutor
		}
		entries, err := a.Service().ListEntries(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No entries.")
			return nil
		}
		printEntries(entries)
		return nil
	},
}

var entryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Log time",
	Example: `  claimer entry add --jira CARTV-123 --hours 1.5 --desc "code review"
  claimer entry add --uloha OPS --date 2024-01-12 --hours 2 --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		autor, err := requireAutor()
		if err != nil {
			return err
		}
		in := claimer.EntryInput{Autor: autor, Datum: today()}
		if err := applyEntryFlags(cmd, &in); err != nil {
			return err
		}

		a, err := newApp("entry-add")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := withConfirmation(cmd, &in.Confirmed, func() (*model.TimeEntry, error) {
			return a.Service().CreateEntry(cmd.Context(), in)
		})
		if err != nil {
			return err
		}
		success("Created entry #%d", entry.ID)
		printEntries([]*model.TimeEntry{entry})
		return nil
	},
}

var entryEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change an entry you own; unspecified fields keep their values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		autor, err := requireAutor()
		if err != nil {
			return err
		}

		a, err := newApp("entry-edit")
		if err != nil {
			return err
		}
		defer a.Close()

		current, err := a.Service().GetEntry(cmd.Context(), id)
		if err != nil {
			return err
		}
		in := claimer.EntryInput{
			Uloha:  current.Uloha,
			Autor:  autor,
			Datum:  current.Datum,
			Hodiny: current.Hodiny,
			Minuty: current.Minuty,
			Jira:   deref(current.Jira),
			Popis:  deref(current.Popis),
		}
		if err := applyEntryFlags(cmd, &in); err != nil {
			return err
		}

		entry, err := withConfirmation(cmd, &in.Confirmed, func() (*model.TimeEntry, error) {
			return a.Service().EditEntry(cmd.Context(), autor, id, in)
		})
		if err != nil {
			return err
		}
		success("Updated entry #%d", entry.ID)
		printEntries([]*model.TimeEntry{entry})
		return nil
	},
}

var entryDupCmd = &cobra.Command{
	Use:   "dup ID",
	Short: "Copy an entry you own to a new entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		autor, err := requireAutor()
		if err != nil {
			return err
		}
		confirmed, _ := cmd.Flags().GetBool("yes")

		a, err := newApp("entry-dup")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := withConfirmation(cmd, &confirmed, func() (*model.TimeEntry, error) {
			return a.Service().DuplicateEntry(cmd.Context(), autor, id, confirmed)
		})
		if err != nil {
			return err
		}
		success("Created entry #%d from #%d", entry.ID, id)
		return nil
	},
}

var entryRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an entry you own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		autor, err := requireAutor()
		if err != nil {
			return err
		}

		a, err := newApp("entry-rm")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeleteEntry(cmd.Context(), autor, id); err != nil {
			return err
		}
		success("Deleted entry #%d", id)
		return nil
	},
}

var entrySubmitCmd = &cobra.Command{
	Use:   "submit ID...",
	Short: "Submit entries to MetaApp",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("submit")
		if err != nil {
			return err
		}
		defer a.Close()

		var failed int
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			entry, err := a.Service().SubmitEntry(cmd.Context(), id)
			if err != nil {
				failed++
				warn("#%d: %v", id, err)
				continue
			}
			success("#%d submitted as vykaz %d", entry.ID, *entry.MetaappVykazID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d submissions failed", failed, len(args))
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import your MetaApp records as local entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		autor, err := requireAutor()
		if err != nil {
			return err
		}

		a, err := newApp("import")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service().ImportFromExternal(cmd.Context(), autor)
		if err != nil {
			return err
		}
		success("Imported %d, skipped %d of %d records", res.Imported, res.Skipped, res.TotalFound)
		return nil
	},
}

// withConfirmation retries op once with *confirmed set when the service asks
// for confirmation and the user agrees.
func withConfirmation(cmd *cobra.Command, confirmed *bool, op func() (*model.TimeEntry, error)) (*model.TimeEntry, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		*confirmed = true
	}
	entry, err := op()
	var conf *claimer.ConfirmationRequiredError
	if !errors.As(err, &conf) {
		return entry, err
	}
	if !confirm(conf.Reason + " Continue?") {
		return nil, fmt.Errorf("%w (pass --yes to confirm)", err)
	}
	*confirmed = true
	return op()
}

// applyEntryFlags overwrites in with every flag the user set.
func applyEntryFlags(cmd *cobra.Command, in *claimer.EntryInput) error {
	f := cmd.Flags()
	if f.Changed("uloha") {
		in.Uloha, _ = f.GetString("uloha")
	}
	if f.Changed("jira") {
		in.Jira, _ = f.GetString("jira")
	}
	if f.Changed("desc") {
		in.Popis, _ = f.GetString("desc")
	}
	if f.Changed("date") {
		d, err := dateFlag(cmd, "date")
		if err != nil {
			return err
		}
		in.Datum = d
	}
	if f.Changed("hours") || f.Changed("minutes") {
		// Changing only the hours drops the old minutes; changing only the
		// minutes keeps the old hours.
		hours := strconv.Itoa(in.Hodiny)
		minutes := ""
		if f.Changed("hours") {
			hours, _ = f.GetString("hours")
		}
		if f.Changed("minutes") {
			minutes, _ = f.GetString("minutes")
		}
		h, m, err := claimer.ParseDuration(hours, minutes)
		if err != nil {
			return err
		}
		in.Hodiny, in.Minuty = h, m
	}
	return nil
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, s)
	}
	return t, nil
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entry id %q", s)
	}
	return id, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func addEntryFlags(cmd *cobra.Command) {
	cmd.Flags().String("uloha", "", "Task code")
	cmd.Flags().String("jira", "", "JIRA issue key")
	cmd.Flags().String("date", "", "Day worked, YYYY-MM-DD (default today)")
	cmd.Flags().String("hours", "", "Hours; decimals such as 1.5 or 1,5 are accepted")
	cmd.Flags().String("minutes", "", "Minutes")
	cmd.Flags().String("desc", "", "Description")
	cmd.Flags().BoolP("yes", "y", false, "Confirm dates outside the usual window")
}

func init() {
	entryListCmd.Flags().String("from", "", "First day, YYYY-MM-DD")
	entryListCmd.Flags().String("to", "", "Last day, YYYY-MM-DD")
	entryListCmd.Flags().Bool("all", false, "Include entries of every author")
	addEntryFlags(entryAddCmd)
	addEntryFlags(entryEditCmd)
	entryDupCmd.Flags().BoolP("yes", "y", false, "Confirm dates outside the usual window")

	entryCmd.AddCommand(entryListCmd)
	entryCmd.AddCommand(entryAddCmd)
	entryCmd.AddCommand(entryEditCmd)
	entryCmd.AddCommand(entryDupCmd)
	entryCmd.AddCommand(entryRmCmd)
	entryCmd.AddCommand(entrySubmitCmd)
}
