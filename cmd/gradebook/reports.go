package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MarcoPoloResearchLab/gradebook/internal/aggregate"
)

func newReportCommand() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Derived grade views",
	}

	reportCmd.AddCommand(&cobra.Command{
		Use:   "card STUDENT",
		Short: "Print a report card",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			student, err := resolveStudent(cli.service.Document(), args[0])
			if err != nil {
				return err
			}
			card, err := cli.service.ReportCard(student.ID)
			if err != nil {
				return err
			}
			return printReportCard(cmd, card)
		}),
	})

	reportCmd.AddCommand(&cobra.Command{
		Use:   "rollup STUDENT",
		Short: "Print a student's full-year subject summary",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			student, err := resolveStudent(cli.service.Document(), args[0])
			if err != nil {
				return err
			}
			rollup := cli.service.YearRollup(student.ID)

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "SUBJECT\tPERCENT\tGRADE\tGPA")
			for _, subject := range rollup.Subjects {
				fmt.Fprintf(writer, "%s\t%.1f\t%s\t%.1f\n",
					subject.SubjectName, subject.Percent, subject.Letter, subject.GPA)
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "overall: %s\n", formatPercent(rollup.OverallPercent))
			fmt.Fprintf(out, "gpa average: %s\n", formatGPA(rollup.GPAAverage))
			fmt.Fprintf(out, "current term gpa: %s\n", formatGPA(rollup.CurrentTermGPA))
			return nil
		}),
	})

	return reportCmd
}

func newTrendCommand() *cobra.Command {
	var (
		studentRef string
		subjectRef string
		termID     string
		byWeekday  bool
	)

	trendCmd := &cobra.Command{
		Use:   "trend",
		Short: "Weekly score trend, or averages by day of the week",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			doc := cli.service.Document()
			filter := aggregate.Filter{TermID: termID}
			if studentRef != "" {
				student, err := resolveStudent(doc, studentRef)
				if err != nil {
					return err
				}
				filter.StudentID = student.ID
			}
			if subjectRef != "" {
				subject, err := resolveSubject(doc, subjectRef)
				if err != nil {
					return err
				}
				filter.SubjectID = subject.ID
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if byWeekday {
				fmt.Fprintln(writer, "DAY\tPERCENT\tCOUNT")
				for _, day := range cli.service.WeekdayAverages(filter) {
					if day.Percent == nil {
						continue
					}
					fmt.Fprintf(writer, "%s\t%.1f\t%d\n", day.Weekday, *day.Percent, day.Count)
				}
				return writer.Flush()
			}
			fmt.Fprintln(writer, "WEEK\tPERCENT\tCOUNT")
			for _, point := range cli.service.TrendSeries(filter) {
				fmt.Fprintf(writer, "%s\t%.1f\t%d\n", point.Key.Label(), point.Percent, point.Count)
			}
			return writer.Flush()
		}),
	}
	trendCmd.Flags().StringVar(&studentRef, "student", "", "Only this student")
	trendCmd.Flags().StringVar(&subjectRef, "subject", "", "Only this subject")
	trendCmd.Flags().StringVar(&termID, "term", "", "Only dates inside this active term id")
	trendCmd.Flags().BoolVar(&byWeekday, "by-weekday", false, "Average by day of the week instead of by week")

	return trendCmd
}

func printReportCard(cmd *cobra.Command, card aggregate.ReportCard) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", card.SchoolName)
	fmt.Fprintf(out, "%s, school year %s\n\n", card.StudentName, card.YearName)

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := "SUBJECT"
	for _, name := range card.TermNames {
		header += "\t" + name
	}
	header += "\tYEAR\tGRADE\tGPA"
	fmt.Fprintln(writer, header)

	for _, row := range card.Rows {
		line := row.SubjectName
		for i := range row.PerTermPercent {
			cell := "-"
			if row.PerTermPercent[i] != nil {
				cell = fmt.Sprintf("%.1f %s", *row.PerTermPercent[i], *row.PerTermLetter[i])
			}
			line += "\t" + cell
		}
		line += fmt.Sprintf("\t%.1f\t%s\t%.1f", row.YearPercent, row.YearLetter, row.YearGPA)
		fmt.Fprintln(writer, line)
	}

	totals := "ALL SUBJECTS"
	for _, total := range card.TermTotals {
		cell := "-"
		if total != nil {
			cell = fmt.Sprintf("%.1f", *total)
		}
		totals += "\t" + cell
	}
	overall := "-"
	if card.OverallPercent != nil {
		overall = fmt.Sprintf("%.1f\t%s", *card.OverallPercent, *card.OverallLetter)
	} else {
		overall += "\t-"
	}
	fmt.Fprintf(writer, "%s\t%s\t%s\n", totals, overall, formatGPA(card.GPAAverage))
	if err := writer.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\ncurrent term gpa: %s\n", formatGPA(card.CurrentTermGPA))
	return nil
}

func formatPercent(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *value)
}

func formatGPA(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *value)
}
