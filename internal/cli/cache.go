package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikhilxb/xnode-db/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the rendered artifact cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached artifacts and snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCacheClear(cmd.Context())
		},
	}
}

func (c *CLI) runCacheClear(ctx context.Context) error {
	ch, err := c.newCache(ctx, false)
	if err != nil {
		return err
	}
	defer ch.Close()

	var (
		count int
		where string
	)
	switch ch := ch.(type) {
	case *cache.FileCache:
		count, err = ch.Clear()
		where = "Directory: " + ch.Dir()
	case *cache.RedisCache:
		where = "Redis: " + c.Config.Cache.Redis.Addr
		count, err = ch.Clear(ctx, c.Config.Cache.Prefix+"*")
	default:
		printInfo("Cache is disabled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	printSuccess("Cleared %d cached entries", count)
	printDetail("%s", where)
	return nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.Config.Cache.Dir
			if dir == "" {
				d, err := cacheDir()
				if err != nil {
					return fmt.Errorf("get cache dir: %w", err)
				}
				dir = d
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}
