package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

func printEntries(entries []*model.TimeEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTIME\tTASK\tJIRA\tAUTHOR\tSTATUS\tDESCRIPTION")
	for _, e := range entries {
		status := color.New(color.FgYellow).Sprint("local")
		if e.IsSubmitted() {
			status = color.New(color.FgGreen).Sprintf("vykaz %d", *e.MetaappVykazID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.Datum.Format(dateLayout),
			claimer.FormatDuration(e.Hodiny, e.Minuty),
			labelled(e.Uloha, e.UlohaName),
			deref(e.Jira),
			e.Autor,
			status,
			truncate(deref(e.Popis), 48),
		)
	}
	w.Flush()
}

func labelled(code string, name *string) string {
	if name == nil || *name == "" {
		return code
	}
	return fmt.Sprintf("%s (%s)", code, truncate(*name, 32))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func warn(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
}
