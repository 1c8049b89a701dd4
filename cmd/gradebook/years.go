package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
)

func newYearCommand() *cobra.Command {
	yearCmd := &cobra.Command{
		Use:   "year",
		Short: "Manage school years",
	}

	var (
		startValue string
		endValue   string
	)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a school year split into four terms and make it current",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			start, err := document.ParseCalendarDate(startValue)
			if err != nil {
				return err
			}
			end, err := document.ParseCalendarDate(endValue)
			if err != nil {
				return err
			}
			year, err := cli.service.AddSchoolYear(ctx, start, end)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created year %s (%s)\n",
				document.SchoolYearName(year.Terms), year.ID)
			return nil
		}),
	}
	addCmd.Flags().StringVar(&startValue, "start", "", "First day of the year (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&endValue, "end", "", "Last day of the year (YYYY-MM-DD)")
	_ = addCmd.MarkFlagRequired("start")
	_ = addCmd.MarkFlagRequired("end")
	yearCmd.AddCommand(addCmd)

	yearCmd.AddCommand(&cobra.Command{
		Use:   "use YEAR_ID",
		Short: "Switch the current school year",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			if err := cli.service.SetCurrentYear(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current year is now %s\n", args[0])
			return nil
		}),
	})

	yearCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List school years",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			doc := cli.service.Document()
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tNAME\tTERMS\tCURRENT")
			for _, year := range doc.Years {
				current := ""
				if year.ID == doc.CurrentYearID {
					current = "*"
				}
				fmt.Fprintf(writer, "%s\t%s\t%d\t%s\n",
					year.ID, document.SchoolYearName(year.Terms), len(year.Terms), current)
			}
			return writer.Flush()
		}),
	})

	return yearCmd
}

func newTermCommand() *cobra.Command {
	termCmd := &cobra.Command{
		Use:   "term",
		Short: "Inspect and adjust the active year's terms",
	}

	termCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the active year's terms",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			doc := cli.service.Document()
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "#\tID\tNAME\tSTART\tEND")
			for i, term := range doc.ActiveTerms() {
				fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\n",
					i+1, term.ID, term.Name, term.Start, term.End)
			}
			return writer.Flush()
		}),
	})

	var (
		startValue string
		endValue   string
		nameValue  string
	)
	editCmd := &cobra.Command{
		Use:   "edit N",
		Short: "Adjust one term's boundaries or name",
		Long: "Adjust one term of the active year by its 1-based position. " +
			"Existing assignments keep their stored term until a backfill.",
		Args: cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			position, err := parsePositiveInt(args[0], "term position")
			if err != nil {
				return err
			}
			terms := cli.service.Document().ActiveTerms()
			if position > len(terms) {
				return fmt.Errorf("term position %d out of range, the year has %d terms", position, len(terms))
			}
			term := &terms[position-1]
			if startValue != "" {
				if term.Start, err = document.ParseCalendarDate(startValue); err != nil {
					return err
				}
			}
			if endValue != "" {
				if term.End, err = document.ParseCalendarDate(endValue); err != nil {
					return err
				}
			}
			if nameValue != "" {
				term.Name = nameValue
			}
			if err := cli.service.ReplaceActiveTerms(ctx, terms); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "term %d is now %s: %s to %s\n",
				position, term.Name, term.Start, term.End)
			return nil
		}),
	}
	editCmd.Flags().StringVar(&startValue, "start", "", "New first day (YYYY-MM-DD)")
	editCmd.Flags().StringVar(&endValue, "end", "", "New last day (YYYY-MM-DD)")
	editCmd.Flags().StringVar(&nameValue, "name", "", "New term name")
	termCmd.AddCommand(editCmd)

	return termCmd
}

func newBackfillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Re-resolve every assignment's term from its date",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			changed := cli.service.BackfillTerms(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "%d assignments moved\n", changed)
			return nil
		}),
	}
}
