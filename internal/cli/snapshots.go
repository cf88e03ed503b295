package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	apperr "github.com/nikhilxb/xnode-db/pkg/errors"
	"github.com/nikhilxb/xnode-db/pkg/store"
)

// snapshotsCommand creates the snapshots command for managing the store.
func (c *CLI) snapshotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"ls"},
		Short:   "List and delete stored snapshots",
	}

	cmd.AddCommand(c.snapshotsListCommand())
	cmd.AddCommand(c.snapshotsDeleteCommand())

	return cmd
}

// snapshotsListCommand creates the "snapshots list" subcommand.
func (c *CLI) snapshotsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSnapshotsList(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// snapshotsDeleteCommand creates the "snapshots delete" subcommand.
func (c *CLI) snapshotsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete stored snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSnapshotsDelete(cmd.Context(), args)
		},
	}
}

func (c *CLI) runSnapshotsList(ctx context.Context, w io.Writer) error {
	st, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(infos) == 0 {
		printInfo("No stored snapshots")
		return nil
	}
	fmt.Fprintln(w, snapshotsTable(infos))
	return nil
}

func (c *CLI) runSnapshotsDelete(ctx context.Context, ids []string) error {
	st, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, id := range ids {
		if err := apperr.ValidateSnapshotID(id); err != nil {
			return err
		}
		if err := st.Delete(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.Wrap(apperr.ErrCodeSnapshotNotFound, err, "snapshot %s", id)
			}
			return err
		}
		printSuccess("Deleted %s", StyleHighlight.Render(id))
	}
	return nil
}

// snapshotsTable renders one row per stored snapshot.
func snapshotsTable(infos []store.Info) string {
	rows := make([][]string, len(infos))
	for i, info := range infos {
		symbols := strconv.Itoa(info.Symbols)
		if info.Truncated {
			symbols += "+"
		}
		rows[i] = []string{info.ID, info.Context, info.CreatedAt.Local().Format("2006-01-02 15:04"), symbols}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Context", "Created", "Symbols").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return tableHeaderStyle
			case col == 0:
				return StyleHighlight
			case col == 3:
				return StyleNumber
			}
			return StyleDim
		}).
		Render()
}
