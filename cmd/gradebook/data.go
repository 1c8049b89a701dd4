package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MarcoPoloResearchLab/gradebook/internal/export"
)

func newExportCommand() *cobra.Command {
	var outPath string

	exportCmd := &cobra.Command{
		Use:       "export {json|csv}",
		Short:     "Write the gradebook to a file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"json", "csv"},
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			doc := cli.service.Document()

			var payload []byte
			var err error
			path := outPath
			switch args[0] {
			case "json":
				payload, err = export.JSON(doc)
				if path == "" {
					path = export.DefaultJSONFileName
				}
			case "csv":
				payload, err = export.CSV(doc)
				if path == "" {
					path = export.DefaultCSVFileName
				}
			default:
				return fmt.Errorf("unknown export format %q", args[0])
			}
			if err != nil {
				return err
			}

			if path == "-" {
				_, err = cmd.OutOrStdout().Write(payload)
				return err
			}
			if err := os.WriteFile(path, payload, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		}),
	}
	exportCmd.Flags().StringVar(&outPath, "out", "", "Output file, - for stdout")

	return exportCmd
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the gradebook with a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := cli.service.ImportDocument(ctx, payload); err != nil {
				return err
			}
			doc := cli.service.Document()
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d students, %d subjects, %d assignments\n",
				len(doc.Students), len(doc.Subjects), len(doc.Assignments))
			return nil
		}),
	}
}

func newSeedCommand() *cobra.Command {
	var seed uint32

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the gradebook with generated sample assignments",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			created, err := cli.service.SeedSampleData(ctx, seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d assignments\n", created)
			return nil
		}),
	}
	seedCmd.Flags().Uint32Var(&seed, "seed", 1, "Generator seed, same seed gives the same data")

	return seedCmd
}

func newResetCommand() *cobra.Command {
	var force bool

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase everything and start from the default gradebook",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("reset erases all data, re-run with --force")
			}
			if err := cli.service.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "gradebook reset")
			return nil
		}),
	}
	resetCmd.Flags().BoolVar(&force, "force", false, "Confirm the reset")

	return resetCmd
}
