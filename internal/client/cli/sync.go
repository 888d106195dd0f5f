package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dmitrijs2005/notesync/internal/client/daemon"
	"github.com/dmitrijs2005/notesync/internal/client/services"
	"github.com/dmitrijs2005/notesync/internal/client/statusfeed"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/spf13/cobra"
)

func newSyncCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a full sync pass now",
		Long: heredoc.Doc(`
			Merges notes, folders and settings with the backend. The newer copy
			of each record wins; local changes that win are pushed back.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.app.SyncService()
			if err != nil {
				return err
			}
			return report(s.app.out, svc.PerformFullSync(cmd.Context()))
		},
	}
}

func newAutoSyncCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "autosync",
		Short: "Sync only if the auto-sync interval has elapsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.app.SyncService()
			if err != nil {
				return err
			}
			return report(s.app.out, svc.AutoSync(cmd.Context()))
		},
	}
}

func report(p printer, res models.SyncResult) error {
	p.result(res)
	if !res.Success {
		return errReported
	}
	return nil
}

type publisherFunc func(models.SyncResult)

func (f publisherFunc) Publish(r models.SyncResult) { f(r) }

func newWatchCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep syncing until interrupted",
		Long: heredoc.Doc(`
			Runs an auto-sync every poll interval, a full sync shortly after the
			backend reports a change, and an auto-sync after local writes.
			With --status-addr every result is also broadcast on a WebSocket
			feed at /ws.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app := s.app

			svc, err := app.SyncService()
			if err != nil {
				return err
			}

			opts := []daemon.Option{
				daemon.WithChangeSource(daemon.ListenerSource(app.Listener())),
				daemon.WithPublisher(publisherFunc(func(r models.SyncResult) {
					if r.Message == "" || r.Message == services.MsgNoSyncNeeded {
						return
					}
					app.out.printf("%s ", time.Now().Format(time.TimeOnly))
					app.out.result(r)
				})),
			}

			if addr := app.cfg.StatusAddr; addr != "" {
				feed := statusfeed.NewServer(addr, app.log)
				if err := feed.Start(); err != nil {
					return err
				}
				defer func() {
					if err := feed.Stop(); err != nil {
						app.log.Warn(ctx, "failed to stop status feed", "error", err)
					}
				}()
				opts = append(opts, daemon.WithPublisher(feed))
				app.out.println(app.out.render(dimStyle, "status feed on ws://"+feed.Addr()+"/ws"))
			}

			watchPath := app.cfg.LocalDBPath
			if watchPath == ":memory:" {
				watchPath = ""
			}
			d := daemon.New(svc, daemon.Config{
				PollInterval:     app.cfg.PollInterval,
				DebounceInterval: app.cfg.DebounceInterval,
				WatchPath:        watchPath,
			}, app.log, opts...)

			app.out.println(app.out.render(dimStyle, "watching, press Ctrl+C to stop"))
			return d.Run(ctx)
		},
	}
}

func newStatusCmd(s *session) *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app := s.app
			p := app.out

			user, err := app.identity.CurrentUser(ctx)
			switch {
			case errors.Is(err, common.ErrUnauthenticated):
				user = p.render(dimStyle, "not signed in")
			case err != nil:
				return err
			}

			meta, err := app.store.Metadata(ctx)
			if err != nil {
				return err
			}
			settings, err := app.store.Settings(ctx)
			if err != nil {
				return err
			}
			notes, err := app.store.Notes(ctx)
			if err != nil {
				return err
			}
			folders, err := app.store.Folders(ctx)
			if err != nil {
				return err
			}

			trashed := 0
			for _, n := range notes {
				if n.Deleted {
					trashed++
				}
			}
			activeFolders := 0
			for _, f := range folders {
				if !f.Deleted {
					activeFolders++
				}
			}

			syncState := p.render(failStyle, "disabled")
			if meta.SyncEnabled {
				syncState = p.render(okStyle, "enabled") + fmt.Sprintf(" (every %s)", settings.AutoSyncEvery())
			}
			last := "never"
			if meta.HasSynced {
				last = meta.LastSyncAt.Local().Format(time.DateTime)
			}

			p.field("User", user)
			p.field("Sync", syncState)
			p.field("Last sync", last)
			p.field("Notes", fmt.Sprintf("%d (%d in trash)", len(notes)-trashed, trashed))
			p.field("Folders", activeFolders)

			if history <= 0 {
				return nil
			}
			c, err := app.Remote()
			if err != nil {
				return err
			}
			logs, err := c.RecentSyncLogs(ctx, history)
			if err != nil {
				return fmt.Errorf("failed to load sync history: %w", err)
			}
			p.println()
			p.println(p.render(titleStyle, "Recent syncs"))
			p.syncLogs(logs)
			return nil
		},
	}
	cmd.Flags().IntVar(&history, "history", 0, "also show the last N sync log entries from the backend")
	return cmd
}
