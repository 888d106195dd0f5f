package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/spf13/cobra"
)

func newSettingsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change user settings",
	}
	cmd.AddCommand(newSettingsShowCmd(s), newSettingsSetCmd(s))
	return cmd
}

func newSettingsShowCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := s.app.NoteService().Settings(cmd.Context())
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(cur, "", "  ")
			if err != nil {
				return err
			}
			s.app.out.println(string(b))
			return nil
		},
	}
}

func newSettingsSetCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting",
		Long: heredoc.Docf(`
			Changes one setting locally. While sync is enabled the change is
			also sent to the backend right away.

			Keys:
			  %s
		`, strings.Join(models.SettingKeys, "\n  ")),
		Example: heredoc.Doc(`
			notesync settings set sync_enabled true
			notesync settings set auto_sync_interval 600
			notesync settings set display.theme dark
		`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := s.app.NoteService().UpdateSettings(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			s.app.out.println(fmt.Sprintf("%s = %s", args[0], args[1]))
			return nil
		},
	}
}
