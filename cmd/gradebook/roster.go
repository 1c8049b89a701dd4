package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MarcoPoloResearchLab/gradebook/internal/document"
)

func newStudentCommand() *cobra.Command {
	studentCmd := &cobra.Command{
		Use:   "student",
		Short: "Manage enrolled students",
	}

	studentCmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Enroll a student",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			student, err := cli.service.AddStudent(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added student %s (%s)\n", student.Name, student.ID)
			return nil
		}),
	})

	studentCmd.AddCommand(&cobra.Command{
		Use:   "remove STUDENT",
		Short: "Remove a student and their assignments",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			student, err := resolveStudent(cli.service.Document(), args[0])
			if err != nil {
				return err
			}
			cli.service.RemoveStudent(ctx, student.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "removed student %s\n", student.Name)
			return nil
		}),
	})

	studentCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List enrolled students",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			doc := cli.service.Document()
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tNAME")
			for _, student := range doc.Students {
				fmt.Fprintf(writer, "%s\t%s\n", student.ID, student.Name)
			}
			return writer.Flush()
		}),
	})

	return studentCmd
}

func newSubjectCommand() *cobra.Command {
	subjectCmd := &cobra.Command{
		Use:   "subject",
		Short: "Manage subjects",
	}

	subjectCmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Add a subject",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			subject, err := cli.service.AddSubject(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added subject %s (%s)\n", subject.Name, subject.ID)
			return nil
		}),
	})

	subjectCmd.AddCommand(&cobra.Command{
		Use:   "remove SUBJECT",
		Short: "Remove a subject and its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			subject, err := resolveSubject(cli.service.Document(), args[0])
			if err != nil {
				return err
			}
			cli.service.RemoveSubject(ctx, subject.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "removed subject %s\n", subject.Name)
			return nil
		}),
	})

	subjectCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List subjects",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			doc := cli.service.Document()
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tNAME")
			for _, subject := range doc.Subjects {
				fmt.Fprintf(writer, "%s\t%s\n", subject.ID, subject.Name)
			}
			return writer.Flush()
		}),
	})

	return subjectCmd
}

func newSchoolCommand() *cobra.Command {
	schoolCmd := &cobra.Command{
		Use:   "school",
		Short: "School-wide settings",
	}

	schoolCmd.AddCommand(&cobra.Command{
		Use:   "name NAME",
		Short: "Rename the school",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			if err := cli.service.SetSchoolName(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "school renamed to %s\n", strings.TrimSpace(args[0]))
			return nil
		}),
	})

	schoolCmd.AddCommand(&cobra.Command{
		Use:   "page-size N",
		Short: "Set the assignments table page size",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			size, err := parsePositiveInt(args[0], "page size")
			if err != nil {
				return err
			}
			return cli.service.SetAssignmentsPageSize(ctx, size)
		}),
	})

	return schoolCmd
}

// resolveStudent accepts either an id or an exact name. Names are handier at
// the shell; ids disambiguate duplicates.
func resolveStudent(doc *document.Document, ref string) (document.Student, error) {
	if student := doc.StudentByID(ref); student != nil {
		return *student, nil
	}
	var matches []document.Student
	for _, student := range doc.Students {
		if strings.EqualFold(student.Name, ref) {
			matches = append(matches, student)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return document.Student{}, fmt.Errorf("no student matches %q", ref)
	default:
		return document.Student{}, fmt.Errorf("%d students named %q, use the id", len(matches), ref)
	}
}

func resolveSubject(doc *document.Document, ref string) (document.Subject, error) {
	if subject := doc.SubjectByID(ref); subject != nil {
		return *subject, nil
	}
	var matches []document.Subject
	for _, subject := range doc.Subjects {
		if strings.EqualFold(subject.Name, ref) {
			matches = append(matches, subject)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return document.Subject{}, fmt.Errorf("no subject matches %q", ref)
	default:
		return document.Subject{}, fmt.Errorf("%d subjects named %q, use the id", len(matches), ref)
	}
}

func parsePositiveInt(raw, what string) (int, error) {
	var value int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &value); err != nil || value < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", what, raw)
	}
	return value, nil
}
