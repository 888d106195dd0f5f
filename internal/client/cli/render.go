package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dmitrijs2005/notesync/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle = lipgloss.NewStyle().Width(12)
)

// printer writes command output, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) printer {
	f, ok := w.(*os.File)
	return printer{w: w, styled: ok && isTerminal(int(f.Fd()))}
}

func (p printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p printer) println(a ...any) {
	fmt.Fprintln(p.w, a...)
}

func (p printer) printf(format string, a ...any) {
	fmt.Fprintf(p.w, format, a...)
}

func (p printer) field(label string, value any) {
	l := label + ":"
	if p.styled {
		l = labelStyle.Render(l)
	} else {
		l = fmt.Sprintf("%-12s", l)
	}
	p.printf("%s %v\n", l, value)
}

func (p printer) result(r models.SyncResult) {
	if !r.Success {
		p.println(p.render(failStyle, r.Message))
		return
	}
	p.println(p.render(okStyle, r.Message))
	if r.NotesCount+r.FoldersCount+r.ConflictsResolved == 0 {
		return
	}
	p.println(p.render(dimStyle, fmt.Sprintf(
		"notes=%d folders=%d conflicts=%d (true=%d) in %dms",
		r.NotesCount, r.FoldersCount, r.ConflictsResolved, r.TrueConflicts, r.SyncDurationMs)))
}

func (p printer) notes(notes []models.Note, folderNames map[string]string) {
	if len(notes) == 0 {
		p.println(p.render(dimStyle, "no notes"))
		return
	}
	for _, n := range notes {
		title := n.Title
		if title == "" {
			title = "(untitled)"
		}
		var tags []string
		if n.FolderID != nil {
			if name, ok := folderNames[*n.FolderID]; ok {
				tags = append(tags, name)
			}
		}
		if n.Deleted {
			tags = append(tags, "trash")
		}
		line := fmt.Sprintf("%s  %s", p.render(dimStyle, n.ID), p.render(titleStyle, title))
		if len(tags) > 0 {
			line += " [" + strings.Join(tags, ", ") + "]"
		}
		p.println(line)
		if preview := firstLine(n.Content); preview != "" {
			p.println("    " + preview)
		}
	}
}

func (p printer) folders(folders []models.Folder) {
	if len(folders) == 0 {
		p.println(p.render(dimStyle, "no folders"))
		return
	}
	for _, f := range folders {
		line := fmt.Sprintf("%s  %s", p.render(dimStyle, f.ID), p.render(titleStyle, f.Name))
		if f.Color != "" {
			line += " " + f.Color
		}
		p.println(line)
	}
}

func (p printer) syncLogs(logs []models.SyncLogEntry) {
	if len(logs) == 0 {
		p.println(p.render(dimStyle, "no sync history"))
		return
	}
	for _, l := range logs {
		status := p.render(okStyle, string(l.Status))
		if l.Status == models.SyncStatusFailed {
			status = p.render(failStyle, string(l.Status))
		}
		line := fmt.Sprintf("%s  %-4s %s notes=%d conflicts=%d %dms",
			l.CreatedAt.Time().Local().Format(time.DateTime), l.SyncType, status,
			l.NotesCount, l.ConflictsResolved, l.DurationMs)
		if l.ErrorMessage != "" {
			line += "  " + l.ErrorMessage
		}
		p.println(line)
	}
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	const previewLen = 60
	if r := []rune(s); len(r) > previewLen {
		return string(r[:previewLen]) + "…"
	}
	return s
}
