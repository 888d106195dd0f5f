package cli

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

func newBackupCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the local replica to S3-compatible storage",
		Long: heredoc.Doc(`
			Snapshots are JSON documents stored under
			users/<user id>/snapshots/<yyyy>/<mm>/<dd>/ in the configured bucket.
		`),
	}
	cmd.AddCommand(newBackupPushCmd(s), newBackupRestoreCmd(s))
	return cmd
}

func newBackupPushCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload a snapshot of all local data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.app.BackupService(cmd.Context())
			if err != nil {
				return err
			}
			key, err := svc.Push(cmd.Context())
			if err != nil {
				return err
			}
			s.app.out.println("Uploaded " + key)
			return nil
		},
	}
}

func newBackupRestoreCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Merge the newest snapshot into local data",
		Long: heredoc.Doc(`
			Merges the newest snapshot into the local replica. Records changed
			locally after the snapshot was taken are kept; nothing is deleted.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.app.BackupService(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Restore(cmd.Context())
			if err != nil {
				return err
			}
			s.app.out.println(fmt.Sprintf("Restored %s: %d notes, %d folders, %d conflicts",
				res.Key, res.Notes, res.Folders, res.Conflicts))
			return nil
		},
	}
}
