package cli

import (
	"errors"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/spf13/cobra"
)

func newLoginCmd(s *session) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token for this device",
		Long: heredoc.Doc(`
			Validates the access token and stores it as the session of this
			device. Signing in as a different user clears the local replica
			first so data of two accounts never mixes.

			Without --token the token is read from the terminal without echo.
		`),
		Example: heredoc.Doc(`
			notesync login --token "$NOTESYNC_TOKEN"
			echo "$TOKEN" | notesync login
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := s.app
			if token == "" {
				var err error
				token, err = GetSecret(app.in, "Access token", app.out.w)
				if err != nil {
					return err
				}
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("no token given")
			}

			uid, err := app.AuthService().Login(cmd.Context(), token)
			if err != nil {
				return err
			}
			app.out.println(app.out.render(okStyle, "Signed in as "+uid))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "access token (JWT)")
	return cmd
}

func newLogoutCmd(s *session) *cobra.Command {
	var wipe bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.app.AuthService().Logout(cmd.Context(), wipe); err != nil {
				return err
			}
			msg := "Signed out."
			if wipe {
				msg = "Signed out, local data removed."
			}
			s.app.out.println(msg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wipe, "wipe", false, "also delete all local notes, folders and settings")
	return cmd
}

func newWhoAmICmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := s.app.identity.CurrentUser(cmd.Context())
			if errors.Is(err, common.ErrUnauthenticated) {
				s.app.out.println(s.app.out.render(dimStyle, "not signed in"))
				return errReported
			}
			if err != nil {
				return err
			}
			s.app.out.println(uid)
			return nil
		},
	}
}
