package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/maruel/calnotes/internal/calendar"
	"github.com/maruel/calnotes/internal/notes"
	"github.com/maruel/calnotes/internal/replica"
	"github.com/maruel/calnotes/internal/syncclient"
	"github.com/spf13/cobra"
)

// reportSave tells the user whether an edit reached the server.
func reportSave(w io.Writer, err error) error {
	if err == nil {
		_, _ = fmt.Fprintln(w, "Saved to server.")
		return nil
	}
	if syncclient.KindOf(err) != 0 {
		_, _ = fmt.Fprintf(w, "Saved locally only: %v\n", err)
		return nil
	}
	return err
}

// reportSource tells the user where the collection came from.
func reportSource(w io.Writer, src syncclient.Source, c notes.Collection) {
	if src == syncclient.SourceLocal {
		_, _ = fmt.Fprintf(w, "Server unavailable, using the local copy (%d days, %d notes).\n", len(c), c.Len())
		return
	}
	_, _ = fmt.Fprintf(w, "Loaded %d days, %d notes from the server.\n", len(c), c.Len())
}

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch the notes from the server into the local copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := a.syncer()
			if err != nil {
				return err
			}
			src := s.InitialLoad(cmd.Context())
			s.Wait()
			reportSource(cmd.OutOrStdout(), src, s.Notes())
			return nil
		},
	}
}

func newPushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Replace the server's notes with the local copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, local, err := a.syncer()
			if err != nil {
				return err
			}
			c, err := local.Load()
			if err != nil {
				return err
			}
			return reportSave(cmd.OutOrStdout(), s.Push(cmd.Context(), c))
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	var weekends bool
	cmd := &cobra.Command{
		Use:   "show [YYYY-MM]",
		Short: "Show a month and its notes",
		Long:  "Show the month grid and the notes of the month. Defaults to the current month.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := calendar.NewMonth(a.now())
			if len(args) == 1 {
				var err error
				if m, err = calendar.ParseMonth(args[0]); err != nil {
					return fmt.Errorf("invalid month %q, want YYYY-MM", args[0])
				}
			}
			s, _, err := a.syncer()
			if err != nil {
				return err
			}
			src := s.InitialLoad(cmd.Context())
			s.Wait()
			w := cmd.OutOrStdout()
			c := s.Notes()
			if src == syncclient.SourceLocal {
				reportSource(w, src, c)
			}
			renderMonth(w, m, c, a.now(), weekends)
			return nil
		},
	}
	cmd.Flags().BoolVar(&weekends, "weekends", false, "Include Saturday and Sunday")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	var appendNotes bool
	var style notes.Note
	cmd := &cobra.Command{
		Use:   "set DATE [TEXT...]",
		Short: "Replace the notes of one day",
		Long: `Replace the notes of one day with one note per TEXT argument.

DATE is YYYY-MM-DD or "today". Without TEXT the day is cleared. Blank notes
are dropped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseDay(args[0], a.now())
			if err != nil {
				return err
			}
			s, _, err := a.syncer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s.InitialLoad(ctx)
			s.Wait()
			var day []notes.Note
			if appendNotes {
				day = s.Day(key)
			}
			day = append(day, a.newNotes(args[1:], style)...)
			return reportSave(cmd.OutOrStdout(), s.SetDay(ctx, key, day))
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&appendNotes, "append", "a", false, "Append to the day instead of replacing it")
	addStyleFlags(cmd, &style)
	return cmd
}

func newDayCmd(a *app) *cobra.Command {
	var clearDay bool
	var style notes.Note
	cmd := &cobra.Command{
		Use:   "day DATE [TEXT...]",
		Short: "Read or replace one day directly on the server",
		Long: `Without TEXT, print the notes of DATE as stored on the server.

With TEXT, or --clear, replace that day on the server with one note per TEXT.
Only that day is sent, so edits made to other days by other clients are kept.
The local copy of the day is updated too. The server must be reachable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseDay(args[0], a.now())
			if err != nil {
				return err
			}
			k, err := notes.ParseDateKey(key)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			if len(args) == 1 && !clearDay {
				day, err := c.Day(ctx, key)
				if err != nil {
					return err
				}
				renderDay(w, k.Time(time.UTC), day)
				return nil
			}
			saved, err := c.SaveDay(ctx, key, a.newNotes(args[1:], style))
			if err != nil {
				return err
			}
			local, err := replica.Open(a.cfg.Replica)
			if err != nil {
				return err
			}
			lc, err := local.Load()
			if err != nil {
				return err
			}
			lc[key] = saved
			if err := local.Save(lc); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "Saved %d notes to server.\n", len(saved))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearDay, "clear", false, "Remove every note of the day")
	addStyleFlags(cmd, &style)
	return cmd
}

func addStyleFlags(cmd *cobra.Command, style *notes.Note) {
	f := cmd.Flags()
	f.StringVar(&style.Font, "font", "", "Font of the new notes")
	f.StringVar(&style.Size, "size", "", "Size of the new notes, e.g. 14px")
	f.StringVar(&style.Color, "color", "", "Color of the new notes, e.g. #ff0000")
}

// newNotes returns one note per text with the configured style, overridden
// by the non-empty fields of style.
func (a *app) newNotes(texts []string, style notes.Note) []notes.Note {
	out := make([]notes.Note, 0, len(texts))
	for _, t := range texts {
		n := a.style(t)
		if style.Font != "" {
			n.Font = style.Font
		}
		if style.Size != "" {
			n.Size = style.Size
		}
		if style.Color != "" {
			n.Color = style.Color
		}
		out = append(out, n)
	}
	return out
}

// parseDay converts YYYY-MM-DD or "today" to a DateKey string.
func parseDay(s string, now time.Time) (string, error) {
	if s == "today" {
		return notes.KeyFor(now).String(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return "", errors.New("invalid date " + s + ", want YYYY-MM-DD")
	}
	return notes.KeyFor(t).String(), nil
}
