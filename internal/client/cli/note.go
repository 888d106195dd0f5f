package cli

import (
	"slices"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dmitrijs2005/notesync/internal/client/services"
	"github.com/dmitrijs2005/notesync/internal/models"
	"github.com/spf13/cobra"
)

func newNoteCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "note",
		Aliases: []string{"notes", "n"},
		Short:   "Create, list and edit notes",
	}
	cmd.AddCommand(
		newNoteAddCmd(s),
		newNoteListCmd(s),
		newNoteEditCmd(s),
		newNoteTrashCmd(s),
		newNoteRestoreCmd(s),
		newNotePurgeCmd(s),
	)
	return cmd
}

func newNoteAddCmd(s *session) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "add TITLE [CONTENT]",
		Short: "Create a note",
		Long: heredoc.Doc(`
			Creates a note in the local replica. Without CONTENT the body is read
			from standard input until an empty line.
		`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := s.app
			content := ""
			if len(args) == 2 {
				content = args[1]
			} else {
				var err error
				if content, err = GetMultiline(app.in, "Content", app.out.w); err != nil {
					return err
				}
			}

			var folderID *string
			if folder != "" {
				folderID = &folder
			}
			n, err := app.NoteService().CreateNote(cmd.Context(), args[0], content, folderID)
			if err != nil {
				return err
			}
			app.out.println(n.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "folder id")
	return cmd
}

func newNoteListCmd(s *session) *cobra.Command {
	var (
		all    bool
		folder string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notes, most recently updated first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc := s.app.NoteService()

			notes, err := svc.ListNotes(ctx, all)
			if err != nil {
				return err
			}
			if folder != "" {
				filtered := notes[:0]
				for _, n := range notes {
					if n.FolderID != nil && *n.FolderID == folder {
						filtered = append(filtered, n)
					}
				}
				notes = filtered
			}

			folders, err := svc.ListFolders(ctx)
			if err != nil {
				return err
			}
			names := make(map[string]string, len(folders))
			for _, f := range folders {
				names[f.ID] = f.Name
			}
			s.app.out.notes(notes, names)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include notes in the trash")
	cmd.Flags().StringVar(&folder, "folder", "", "only notes in this folder")
	return cmd
}

func newNoteEditCmd(s *session) *cobra.Command {
	var (
		title, content, folder string
		noFolder               bool
	)

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a note",
		Example: heredoc.Doc(`
			notesync note edit 0f9c... --title "Groceries"
			notesync note edit 0f9c... --no-folder
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch services.NotePatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("content") {
				patch.Content = &content
			}
			if cmd.Flags().Changed("folder") {
				patch.FolderID = &folder
			}
			patch.ClearFolder = noFolder

			n, err := s.app.NoteService().UpdateNote(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			s.app.out.println("Updated " + n.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&content, "content", "", "new content")
	cmd.Flags().StringVar(&folder, "folder", "", "move to folder id")
	cmd.Flags().BoolVar(&noFolder, "no-folder", false, "remove from its folder")
	cmd.MarkFlagsMutuallyExclusive("folder", "no-folder")
	return cmd
}

func newNoteTrashCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "trash ID",
		Short: "Move a note to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.app.NoteService().TrashNote(cmd.Context(), args[0]); err != nil {
				return err
			}
			s.app.out.println("Moved to trash.")
			return nil
		},
	}
}

func newNoteRestoreCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "restore ID",
		Short: "Take a note out of the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.app.NoteService().RestoreNote(cmd.Context(), args[0]); err != nil {
				return err
			}
			s.app.out.println("Restored.")
			return nil
		},
	}
}

func newNotePurgeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "purge ID",
		Short: "Delete a note for good",
		Long: heredoc.Doc(`
			Removes the note from the server and then from this device. When the
			server cannot be reached the note is only moved to the trash.
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := s.app.NoteService().PurgeNote(ctx, args[0]); err != nil {
				return err
			}
			notes, err := s.app.store.Notes(ctx)
			if err != nil {
				return err
			}
			if slices.ContainsFunc(notes, func(n models.Note) bool { return n.ID == args[0] }) {
				s.app.out.println("Server unreachable, moved to trash.")
				return nil
			}
			s.app.out.println("Purged.")
			return nil
		},
	}
}
