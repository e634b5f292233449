package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/maruel/calnotes/internal/noteio"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [FILE]",
		Short: "Export all notes to an xlsx workbook",
		Long:  "Export all notes to an xlsx workbook. FILE defaults to calnotes_YYYYMMDD.xlsx.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := noteio.FileName(a.now())
			if len(args) == 1 {
				path = args[0]
			}
			s, _, err := a.syncer()
			if err != nil {
				return err
			}
			src := s.InitialLoad(cmd.Context())
			s.Wait()
			c := s.Notes()
			w := cmd.OutOrStdout()
			reportSource(w, src, c)
			var buf bytes.Buffer
			if err := noteio.Export(&buf, c); err != nil {
				return err
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "Exported %d notes to %s\n", c.Len(), path)
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace all notes with the content of an xlsx workbook",
		Long: `Replace all notes with the content of an xlsx workbook.

The first sheet is read and its first row skipped. Rows without text are
ignored. Rows with a missing or invalid date are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			c, rowErrs, err := noteio.Import(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, re := range rowErrs {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", args[0], re)
			}
			_, _ = fmt.Fprintf(w, "Read %d notes over %d days, %d rows skipped.\n", c.Len(), len(c), len(rowErrs))
			if dryRun {
				return nil
			}
			s, _, err := a.syncer()
			if err != nil {
				return err
			}
			return reportSave(w, s.Push(cmd.Context(), c))
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Only parse the file")
	return cmd
}
