package cli

import (
	"github.com/spf13/cobra"
)

func newFolderCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "folder",
		Aliases: []string{"folders", "f"},
		Short:   "Manage folders",
	}
	cmd.AddCommand(
		newFolderAddCmd(s),
		newFolderListCmd(s),
		newFolderRenameCmd(s),
		newFolderTrashCmd(s),
	)
	return cmd
}

func newFolderAddCmd(s *session) *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := s.app.NoteService().CreateFolder(cmd.Context(), args[0], color)
			if err != nil {
				return err
			}
			s.app.out.println(f.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "display color, e.g. #ff8800")
	return cmd
}

func newFolderListCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List folders by name",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			folders, err := s.app.NoteService().ListFolders(cmd.Context())
			if err != nil {
				return err
			}
			s.app.out.folders(folders)
			return nil
		},
	}
}

func newFolderRenameCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := s.app.NoteService().RenameFolder(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			s.app.out.println("Renamed to " + f.Name)
			return nil
		},
	}
}

func newFolderTrashCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "trash ID",
		Short: "Delete a folder; its notes move out of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.app.NoteService().TrashFolder(cmd.Context(), args[0]); err != nil {
				return err
			}
			s.app.out.println("Folder deleted.")
			return nil
		},
	}
}
