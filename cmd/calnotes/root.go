package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maruel/calnotes/internal/logging"
	"github.com/maruel/calnotes/internal/notes"
	"github.com/maruel/calnotes/internal/replica"
	"github.com/maruel/calnotes/internal/syncclient"
	"github.com/spf13/cobra"
)

// app holds the state shared by the subcommands.
type app struct {
	configPath string
	serverURL  string
	replica    string
	verbose    bool

	cfg Config
	now func() time.Time
}

func newRootCmd() *cobra.Command {
	return newRoot(&app{now: time.Now})
}

func newRoot(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "calnotes",
		Short: "Calendar notes in the terminal",
		Long: `calnotes keeps short notes attached to calendar days.

Notes live on a calnotes-server. A local copy is kept so that the notes can
still be read, and edited, while the server is unreachable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ll := &slog.LevelVar{}
			if a.verbose {
				ll.Set(slog.LevelDebug)
			}
			slog.SetDefault(logging.New(os.Stderr, ll))
			return a.loadConfig(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", filepath.Join(configDir(), "config.yaml"), "Configuration file")
	f.StringVarP(&a.serverURL, "server", "s", "", "Server URL (overrides the config file)")
	f.StringVar(&a.replica, "replica", "", "Local copy of the notes (overrides the config file)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newSyncCmd(a),
		newPullCmd(a),
		newPushCmd(a),
		newShowCmd(a),
		newSetCmd(a),
		newDayCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
		newBackupsCmd(a),
		newHistoryCmd(a),
		newHealthCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("server") {
		cfg.Server = a.serverURL
	}
	if cmd.Flags().Changed("replica") {
		cfg.Replica = a.replica
	}
	a.cfg = cfg
	return nil
}

func (a *app) client() (*syncclient.Client, error) {
	return syncclient.NewClient(a.cfg.Server)
}

// syncer returns a Syncer backed by the configured server and replica.
func (a *app) syncer(opts ...syncclient.Option) (*syncclient.Syncer, *replica.File, error) {
	c, err := a.client()
	if err != nil {
		return nil, nil, err
	}
	local, err := replica.Open(a.cfg.Replica)
	if err != nil {
		return nil, nil, err
	}
	return syncclient.New(c, local, opts...), local, nil
}

// style returns the note style of new notes.
func (a *app) style(text string) notes.Note {
	return notes.Note{Text: text, Font: a.cfg.Font, Size: a.cfg.Size, Color: a.cfg.Color}
}
