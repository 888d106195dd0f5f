package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dmitrijs2005/notesync/internal/client/config"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/spf13/cobra"
)

// errReported marks a failure whose message was already printed.
var errReported = errors.New("reported")

// session owns the App built for one command invocation.
type session struct {
	in  io.Reader
	out io.Writer

	cfgFile string
	app     *App
	logFile io.Closer
}

func (s *session) open(cmd *cobra.Command) error {
	cfg, err := config.Load(s.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	log, closer := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
	})
	s.logFile = closer

	app, err := NewApp(cmd.Context(), cfg, log, s.in, s.out)
	if err != nil {
		return err
	}
	s.app = app
	return nil
}

func (s *session) close() error {
	var errs []error
	if s.app != nil {
		errs = append(errs, s.app.Close())
		s.app = nil
	}
	if s.logFile != nil {
		errs = append(errs, s.logFile.Close())
		s.logFile = nil
	}
	return errors.Join(errs...)
}

func newRootCmd(in io.Reader, out io.Writer) (*cobra.Command, *session) {
	s := &session{in: in, out: out}

	root := &cobra.Command{
		Use:   "notesync",
		Short: "Offline-first notes with server sync",
		Long: heredoc.Doc(`
			notesync keeps notes, folders and settings in a local database and
			reconciles them with a Postgres backend. Every record carries an
			updated_at stamp; on sync the newer copy wins and nothing is lost.

			Sign in with "notesync login", enable sync with
			"notesync settings set sync_enabled true", then run "notesync sync"
			or keep "notesync watch" running.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)

	var d config.Config
	d.LoadDefaults()

	pf := root.PersistentFlags()
	pf.StringVar(&s.cfgFile, "config", "", "config file (JSON, YAML or TOML)")
	pf.String("local-db-path", d.LocalDBPath, "local SQLite database")
	pf.String("remote-dsn", d.RemoteDSN, "Postgres connection string of the backend")
	pf.String("jwt-secret", d.JWTSecret, "secret used to validate access tokens")
	pf.String("access-token", d.AccessToken, "access token used when no session is stored")
	pf.Duration("remote-timeout", d.RemoteTimeout, "timeout of a single backend call")
	pf.Duration("poll-interval", d.PollInterval, "how often watch checks whether a sync is due")
	pf.Duration("debounce-interval", d.DebounceInterval, "quiet period before watch reacts to changes")
	pf.String("status-addr", d.StatusAddr, "address of the WebSocket status feed for watch")
	pf.String("log-level", d.LogLevel, "debug, info, warn or error")
	pf.String("log-format", d.LogFormat, "text or json")
	pf.String("log-file", d.LogFile, "write logs to a rotated file instead of stderr")

	root.AddCommand(
		newSyncCmd(s),
		newAutoSyncCmd(s),
		newWatchCmd(s),
		newStatusCmd(s),
		newLoginCmd(s),
		newLogoutCmd(s),
		newWhoAmICmd(s),
		newNoteCmd(s),
		newFolderCmd(s),
		newSettingsCmd(s),
		newBackupCmd(s),
		newRemoteCmd(s),
	)
	return root, s
}

// Execute runs the notesync command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root, s := newRootCmd(os.Stdin, os.Stdout)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := s.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil {
		return 0
	}
	if !errors.Is(err, errReported) {
		p := newPrinter(os.Stderr)
		fmt.Fprintln(os.Stderr, p.render(failStyle, "Error: "+err.Error()))
	}
	return 1
}
