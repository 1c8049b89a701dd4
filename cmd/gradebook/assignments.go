package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
	"github.com/MarcoPoloResearchLab/gradebook/internal/grading"
)

func newAssignmentCommand() *cobra.Command {
	assignmentCmd := &cobra.Command{
		Use:     "assignment",
		Aliases: []string{"grade"},
		Short:   "Record and manage graded work",
	}

	var (
		studentRef string
		subjectRef string
		total      int
		correct    int
		dateValue  string
	)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Record a graded assignment",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			doc := cli.service.Document()
			student, err := resolveStudent(doc, studentRef)
			if err != nil {
				return err
			}
			subject, err := resolveSubject(doc, subjectRef)
			if err != nil {
				return err
			}
			date, err := document.ParseCalendarDate(dateValue)
			if err != nil {
				return err
			}
			assignment, err := cli.service.AddAssignment(ctx, student.ID, subject.ID, total, correct, date)
			if err != nil {
				return err
			}
			percent := grading.Percent(assignment.Correct, assignment.Total)
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s: %s %d/%d (%.1f%% %s) on %s\n",
				assignment.ID, subject.Name, assignment.Correct, assignment.Total,
				percent, grading.LetterForPercent(percent), assignment.Date)
			return nil
		}),
	}
	addCmd.Flags().StringVar(&studentRef, "student", "", "Student id or name")
	addCmd.Flags().StringVar(&subjectRef, "subject", "", "Subject id or name")
	addCmd.Flags().IntVar(&total, "total", 0, "Total problems")
	addCmd.Flags().IntVar(&correct, "correct", 0, "Problems answered correctly")
	addCmd.Flags().StringVar(&dateValue, "date", "", "Assignment date (YYYY-MM-DD)")
	for _, name := range []string{"student", "subject", "total", "correct", "date"} {
		_ = addCmd.MarkFlagRequired(name)
	}
	assignmentCmd.AddCommand(addCmd)

	updateCmd := &cobra.Command{
		Use:   "update ID",
		Short: "Rewrite an assignment's score and date",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			date, err := document.ParseCalendarDate(dateValue)
			if err != nil {
				return err
			}
			assignment, err := cli.service.UpdateAssignment(ctx, args[0], total, correct, date)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s: %d/%d on %s\n",
				assignment.ID, assignment.Correct, assignment.Total, assignment.Date)
			return nil
		}),
	}
	updateCmd.Flags().IntVar(&total, "total", 0, "Total problems")
	updateCmd.Flags().IntVar(&correct, "correct", 0, "Problems answered correctly")
	updateCmd.Flags().StringVar(&dateValue, "date", "", "Assignment date (YYYY-MM-DD)")
	for _, name := range []string{"total", "correct", "date"} {
		_ = updateCmd.MarkFlagRequired(name)
	}
	assignmentCmd.AddCommand(updateCmd)

	assignmentCmd.AddCommand(&cobra.Command{
		Use:   "remove ID",
		Short: "Delete one assignment",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			cli.service.RemoveAssignment(ctx, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		}),
	})

	assignmentCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every assignment, keeping students, subjects and terms",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			cli.service.ClearAssignments(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "assignments cleared")
			return nil
		}),
	})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List assignments in date order",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			doc := cli.service.Document()
			rows := append([]document.Assignment(nil), doc.Assignments...)
			if studentRef != "" {
				student, err := resolveStudent(doc, studentRef)
				if err != nil {
					return err
				}
				filtered := rows[:0]
				for _, row := range rows {
					if row.StudentID == student.ID {
						filtered = append(filtered, row)
					}
				}
				rows = filtered
			}
			sort.SliceStable(rows, func(i, j int) bool {
				return rows[i].Date.Before(rows[j].Date)
			})

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tDATE\tSTUDENT\tSUBJECT\tRESULT\tPERCENT\tGRADE")
			for _, row := range rows {
				studentName, subjectName := "", ""
				if student := doc.StudentByID(row.StudentID); student != nil {
					studentName = student.Name
				}
				if subject := doc.SubjectByID(row.SubjectID); subject != nil {
					subjectName = subject.Name
				}
				percent := grading.Percent(row.Correct, row.Total)
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d/%d\t%.1f\t%s\n",
					row.ID, row.Date, studentName, subjectName,
					row.Correct, row.Total, percent, grading.LetterForPercent(percent))
			}
			return writer.Flush()
		}),
	}
	listCmd.Flags().StringVar(&studentRef, "student", "", "Only this student's assignments")
	assignmentCmd.AddCommand(listCmd)

	return assignmentCmd
}
