package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/michal-palko/smart-claimer/internal/model"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage entry templates",
}

var templateAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Save a preset for the entry form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		autor, err := requireAutor()
		if err != nil {
			return err
		}
		tmpl := &model.Template{Name: args[0], Autor: autor}
		for flag, dst := range map[string]**string{
			"uloha":   &tmpl.Uloha,
			"jira":    &tmpl.Jira,
			"hours":   &tmpl.Hodiny,
			"minutes": &tmpl.Minuty,
			"desc":    &tmpl.Popis,
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
			}
		}

		a, err := newApp("template-add")
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.Service().CreateTemplate(cmd.Context(), tmpl)
		if err != nil {
			return err
		}
		success("Created template #%d %q", created.ID, created.Name)
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		autor, err := requireAutor()
		if err != nil {
			return err
		}

		a, err := newApp("template-list")
		if err != nil {
			return err
		}
		defer a.Close()

		templates, err := a.Service().ListTemplates(cmd.Context(), autor)
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			fmt.Println("No templates.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTASK\tJIRA\tHOURS\tMINUTES\tDESCRIPTION")
		for _, t := range templates {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Name, deref(t.Uloha), deref(t.Jira), deref(t.Hodiny), deref(t.Minuty), truncate(deref(t.Popis), 40))
		}
		return w.Flush()
	},
}

var templateRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete one of your templates",
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

		a, err := newApp("template-rm")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeleteTemplate(cmd.Context(), autor, id); err != nil {
			return err
		}
		success("Deleted template #%d", id)
		return nil
	},
}

func init() {
	templateAddCmd.Flags().String("uloha", "", "Task code")
	templateAddCmd.Flags().String("jira", "", "JIRA issue key")
	templateAddCmd.Flags().String("hours", "", "Hours")
	templateAddCmd.Flags().String("minutes", "", "Minutes")
	templateAddCmd.Flags().String("desc", "", "Description")

	templateCmd.AddCommand(templateAddCmd)
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateRmCmd)
}
