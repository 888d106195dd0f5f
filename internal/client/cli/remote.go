package cli

import (
	"github.com/spf13/cobra"
)

func newRemoteCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Backend maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the backend schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.app.Remote()
			if err != nil {
				return err
			}
			if err := c.Migrate(cmd.Context()); err != nil {
				return err
			}
			s.app.out.println("Backend schema is up to date.")
			return nil
		},
	})
	return cmd
}
