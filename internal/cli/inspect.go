package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	apperr "github.com/nikhilxb/xnode-db/pkg/errors"
	"github.com/nikhilxb/xnode-db/pkg/schema"
)

// inspectOpts holds the command-line flags for the inspect command.
type inspectOpts struct {
	symbol string // show one symbol instead of the namespace
	json   bool   // print the raw namespace shells or payload
}

// inspectCommand creates the inspect command for printing snapshot contents.
func (c *CLI) inspectCommand() *cobra.Command {
	var opts inspectOpts

	cmd := &cobra.Command{
		Use:   "inspect SNAPSHOT",
		Short: "Print a snapshot's namespace or one symbol",
		Long: `Print the variables captured in a snapshot, or the payload of one symbol.

SNAPSHOT is a snapshot JSON file or the id of a stored snapshot. With --json
the output is the same document the server returns for the request.`,
		Example: `  xnode inspect model.json
  xnode inspect model.json --symbol @id:7
  xnode inspect model.json --symbol @id:7 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.loadSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.runInspect(cmd.Context(), cmd.OutOrStdout(), snap, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.symbol, "symbol", "s", "", "symbol reference to show (e.g. @id:7)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print JSON instead of a table")

	return cmd
}

func (c *CLI) runInspect(_ context.Context, w io.Writer, snap *schema.Snapshot, opts inspectOpts) error {
	if opts.symbol == "" {
		if opts.json {
			return writeIndentedJSON(w, snap.Shells())
		}
		fmt.Fprintln(w, namespaceTable(snap))
		if snap.Truncated {
			printWarning("Snapshot was truncated; some symbols were not loaded")
		}
		return nil
	}

	if err := apperr.ValidateSymbolRef(opts.symbol); err != nil {
		return err
	}
	payload, err := snap.Load(opts.symbol)
	if err != nil {
		return symbolError(opts.symbol, err)
	}
	if opts.json {
		return writeIndentedJSON(w, payload)
	}
	fmt.Fprintln(w, symbolView(snap, payload))
	return nil
}

// symbolError maps a snapshot lookup failure to an application error.
func symbolError(ref string, err error) error {
	switch {
	case errors.Is(err, schema.ErrInvalidRef):
		return apperr.Wrap(apperr.ErrCodeInvalidSymbol, err, "invalid symbol reference %q", ref)
	case errors.Is(err, schema.ErrUnknownSymbol), errors.Is(err, schema.ErrNotLoaded):
		return apperr.Wrap(apperr.ErrCodeSymbolNotFound, err, "symbol %s is not in the snapshot", ref)
	}
	return err
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// Rendering
// =============================================================================

var tableHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)

// namespaceTable renders one row per namespace variable: name, reference,
// type and summary.
func namespaceTable(snap *schema.Snapshot) string {
	names := snap.Names()
	rows := make([][]string, 0, len(names))
	types := make([]string, 0, len(names))
	for _, name := range names {
		ref := snap.Namespace[name]
		typ, str := "", ""
		if sym := snap.Symbol(ref); sym != nil {
			typ, str = sym.Type, sym.Str
		}
		rows = append(rows, []string{name, ref, typ, str})
		types = append(types, typ)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Name", "Ref", "Type", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return tableHeaderStyle
			}
			switch col {
			case 1:
				return styleRef
			case 2:
				return typeStyle(types[row])
			}
			return lipgloss.NewStyle()
		})

	var b strings.Builder
	b.WriteString(StyleTitle.Render(snap.ID))
	if snap.Context != "" {
		b.WriteString(StyleDim.Render("  " + snap.Context))
	}
	b.WriteString("\n")
	b.WriteString(t.Render())
	return b.String()
}

// symbolView renders a payload: the symbol's header, its viewer fields
// with references resolved to their summaries, and its attributes.
func symbolView(snap *schema.Snapshot, p *schema.Payload) string {
	var b strings.Builder
	sym := snap.Symbol(p.SymbolID)
	b.WriteString(styleRef.Render(p.SymbolID))
	if sym != nil {
		b.WriteString("  " + typeStyle(sym.Type).Render(sym.Type))
		if sym.Name != "" {
			b.WriteString("  " + StyleValue.Render(sym.Name))
		}
		b.WriteString("\n" + StyleDim.Render(sym.Str))
	}
	b.WriteString("\n")

	writeFields := func(title string, fields map[string]any) {
		if len(fields) == 0 {
			return
		}
		b.WriteString("\n" + StyleTitle.Render(title) + "\n")
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			fmt.Fprintf(&b, "  %-12s %s\n", k, fmtField(p, fields[k]))
		}
	}
	writeFields("Viewer", p.Data.Viewer)
	writeFields("Attributes", p.Data.Attributes)
	return strings.TrimRight(b.String(), "\n")
}

// fmtField prints one encoded value. References are shown with the summary
// of the symbol they point to.
func fmtField(p *schema.Payload, v any) string {
	switch x := v.(type) {
	case nil:
		return StyleDim.Render("nil")
	case string:
		if schema.IsRef(x) {
			if sh := p.Shells[x]; sh != nil {
				return styleRef.Render(x) + " " + StyleDim.Render(sh.Str)
			}
			return styleRef.Render(x)
		}
		return schema.Unescape(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = fmtField(p, e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		parts := make([]string, 0, len(x))
		for _, k := range slices.Sorted(maps.Keys(x)) {
			parts = append(parts, k+": "+fmtField(p, x[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(v)
}
