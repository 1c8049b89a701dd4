package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MarcoPoloResearchLab/gradebook/internal/dispatch"
	"github.com/MarcoPoloResearchLab/gradebook/internal/sync/httpremote"
)

func newSyncCommand() *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Replicate the gradebook through a sync server",
	}

	syncCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Keep this gradebook reconciled with the server until interrupted",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			remote, err := newRemote(cli)
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			unregister := cli.service.OnChange(func(event dispatch.Event) {
				if event.Origin == dispatch.OriginRemote {
					fmt.Fprintf(cmd.OutOrStdout(), "received remote change, stamp %d\n", event.UpdatedAtMs)
				}
			})
			defer unregister()

			if err := cli.service.EnableSync(signalCtx, remote); err != nil {
				return err
			}
			defer cli.service.DisableSync()

			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", cli.service.StatusMessage())
			<-signalCtx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), "sync stopped")
			return nil
		}),
	})

	syncCmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Reconcile once with the server and exit",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			remote, err := newRemote(cli)
			if err != nil {
				return err
			}
			if err := cli.service.EnableSync(ctx, remote); err != nil {
				return err
			}
			cli.service.DisableSync()
			fmt.Fprintln(cmd.OutOrStdout(), "reconciled")
			return nil
		}),
	})

	syncCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the replication configuration",
		Args:  cobra.NoArgs,
		RunE: runWithApp(func(ctx context.Context, cli *cliApp, cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if strings.TrimSpace(cli.config.SyncURL) == "" {
				fmt.Fprintln(out, "sync not configured, set sync.url and sync.account")
				return nil
			}
			fmt.Fprintf(out, "server: %s\n", cli.config.SyncURL)
			fmt.Fprintf(out, "account: %s\n", cli.config.SyncAccount)
			fmt.Fprintf(out, "state: %s\n", cli.service.StatusMessage())
			return nil
		}),
	})

	return syncCmd
}

func newRemote(cli *cliApp) (*httpremote.Client, error) {
	if strings.TrimSpace(cli.config.SyncURL) == "" {
		return nil, fmt.Errorf("sync.url is not configured")
	}
	return httpremote.NewClient(httpremote.ClientConfig{
		BaseURL:   cli.config.SyncURL,
		AccountID: cli.config.SyncAccount,
	})
}
