package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the server's notes to a backup file on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			path, err := c.Backup(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
			return nil
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore BACKUP",
		Short: "Replace the server's notes with a backup file",
		Long:  "Replace the server's notes with a backup file. A relative BACKUP is resolved in the server's data directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, local, err := a.syncer()
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			restored, err := c.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			// Bring the local copy along.
			if err := local.Save(restored); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored %d days, %d notes from %s\n", len(restored), restored.Len(), args[0])
			return nil
		},
	}
}

func newBackupsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List the backup files on the server, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			list, err := c.Backups(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "MODIFIED\tSIZE\tFILE")
			for _, b := range list {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Modified, b.Size, b.BackupFile)
			}
			return tw.Flush()
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the git commits of the server's data file, newest first",
		Long:  "List the git commits of the server's data file. The server must run with -git-history.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			list, err := c.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "WHEN\tCOMMIT\tAUTHOR\tMESSAGE")
			for _, e := range list {
				_, _ = fmt.Fprintf(tw, "%s\t%.12s\t%s\t%s\n", e.When, e.Hash, e.Author, e.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of commits to list (server default when 0)")
	return cmd
}
