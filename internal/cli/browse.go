package cli

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nikhilxb/xnode-db/pkg/schema"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// browseCommand creates the browse command for exploring a snapshot in the
// terminal.
func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse SNAPSHOT",
		Short: "Explore a snapshot interactively",
		Long: `Open a terminal browser over a snapshot.

The first screen lists the captured variables. Selecting one shows its
payload and the symbols it refers to, which can be followed in turn.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.loadSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := tea.NewProgram(NewBrowseModel(snap), tea.WithContext(cmd.Context()), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}

// =============================================================================
// BrowseModel - Interactive symbol navigation
// =============================================================================

// browseItem is one selectable line: a label and the symbol it leads to.
type browseItem struct {
	label string
	ref   string
}

// browseFrame is one screen of the browser. An empty Ref is the namespace.
type browseFrame struct {
	Ref    string
	Items  []browseItem
	Cursor int
	Offset int
}

// BrowseModel is the bubbletea model for snapshot browsing.
type BrowseModel struct {
	Snap   *schema.Snapshot
	Stack  []browseFrame
	Height int
	Status string
}

// NewBrowseModel creates a browser positioned on the snapshot's namespace.
func NewBrowseModel(snap *schema.Snapshot) BrowseModel {
	root := browseFrame{}
	for _, name := range snap.Names() {
		root.Items = append(root.Items, browseItem{label: name, ref: snap.Namespace[name]})
	}
	return BrowseModel{Snap: snap, Stack: []browseFrame{root}, Height: 15}
}

func (m BrowseModel) top() *browseFrame {
	return &m.Stack[len(m.Stack)-1]
}

// Current returns the reference of the symbol on screen, or "" on the
// namespace screen.
func (m BrowseModel) Current() string {
	return m.top().Ref
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.Status = ""
		f := m.top()
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if f.Cursor > 0 {
				f.Cursor--
				if f.Cursor < f.Offset {
					f.Offset = f.Cursor
				}
			}
		case "down", "j":
			if f.Cursor < len(f.Items)-1 {
				f.Cursor++
				if f.Cursor >= f.Offset+m.Height {
					f.Offset = f.Cursor - m.Height + 1
				}
			}
		case "enter", "right", "l":
			if len(f.Items) == 0 {
				return m, nil
			}
			return m.open(f.Items[f.Cursor].ref), nil
		case "backspace", "left", "h", "esc":
			if len(m.Stack) > 1 {
				m.Stack = m.Stack[:len(m.Stack)-1]
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

// open pushes a frame for ref, or sets a status line when its payload is
// not in the snapshot.
func (m BrowseModel) open(ref string) BrowseModel {
	p, err := m.Snap.Load(ref)
	if err != nil {
		m.Status = err.Error()
		return m
	}
	// Copy so frames below the new one keep their own state.
	m.Stack = append(m.Stack[:len(m.Stack):len(m.Stack)], browseFrame{Ref: ref, Items: payloadItems(p)})
	return m
}

// payloadItems lists every reference in a payload, labelled by the field
// path it was found under.
func payloadItems(p *schema.Payload) []browseItem {
	var items []browseItem
	var walk func(path string, v any)
	walk = func(path string, v any) {
		switch x := v.(type) {
		case string:
			if schema.IsRef(x) {
				items = append(items, browseItem{label: path, ref: x})
			}
		case []any:
			for i, e := range x {
				walk(fmt.Sprintf("%s[%d]", path, i), e)
			}
		case map[string]any:
			for _, k := range sortedKeys(x) {
				walk(path+"."+k, x[k])
			}
		}
	}
	for _, k := range sortedKeys(p.Data.Viewer) {
		walk(k, p.Data.Viewer[k])
	}
	for _, k := range sortedKeys(p.Data.Attributes) {
		walk(k, p.Data.Attributes[k])
	}
	return items
}

func (m BrowseModel) View() string {
	var b strings.Builder
	f := m.top()

	if f.Ref == "" {
		b.WriteString(StyleTitle.Render(m.Snap.ID))
	} else {
		b.WriteString(StyleTitle.Render(m.breadcrumb()))
	}
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ open  ⌫ back  q quit"))
	b.WriteString("\n\n")

	if f.Ref != "" {
		if sym := m.Snap.Symbol(f.Ref); sym != nil {
			b.WriteString(typeStyle(sym.Type).Render(sym.Type))
			b.WriteString("  ")
			b.WriteString(StyleValue.Render(sym.Str))
			b.WriteString("\n\n")
		}
	}

	if len(f.Items) == 0 {
		b.WriteString(listDimStyle.Render("  (no references)"))
		b.WriteString("\n")
	}
	end := min(f.Offset+m.Height, len(f.Items))
	for i := f.Offset; i < end; i++ {
		it := f.Items[i]
		cursor := "  "
		if i == f.Cursor {
			cursor = "▸ "
		}
		summary, typ := "", ""
		if sym := m.Snap.Symbol(it.ref); sym != nil {
			summary, typ = sym.Str, sym.Type
		}
		line := fmt.Sprintf("%s%-20s %s", cursor, it.label, typeStyle(typ).Render(summary))
		if i == f.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.Status != "" {
		b.WriteString(StyleWarning.Render("  " + m.Status))
	} else if len(f.Items) > 0 {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", f.Cursor+1, len(f.Items))))
	}
	return b.String()
}

// breadcrumb shows the path of symbols opened from the namespace.
func (m BrowseModel) breadcrumb() string {
	parts := make([]string, 0, len(m.Stack))
	for i, f := range m.Stack[1:] {
		label := m.Stack[i].Items[m.Stack[i].Cursor].label
		if sym := m.Snap.Symbol(f.Ref); sym != nil && sym.Name != "" {
			label = sym.Name
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " "+iconArrow+" ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
