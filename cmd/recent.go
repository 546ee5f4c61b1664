package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ankurauti1234/Events-Dashboard/internal/config"
	"github.com/ankurauti1234/Events-Dashboard/internal/store"
)

var recentLimit int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Manage recently viewed device IDs",
}

// withStore runs fn against the recent devices database of the logged in
// user, exiting on failure.
func withStore(fn func(ctx context.Context, st *store.Store, owner string) error) {
	st, err := store.Open(settings().DBPath)
	if err != nil {
		fmt.Printf("Error opening %s: %v\n", settings().DBPath, err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fn(ctx, st, config.LoadSession().Owner()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

var recentListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List recent device IDs, newest first",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, st *store.Store, owner string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			ids, err := st.Suggest(ctx, owner, prefix, recentLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(ids)
				return nil
			}
			if len(ids) == 0 {
				fmt.Println("No recent devices.")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		})
	},
}

var recentRemoveCmd = &cobra.Command{
	Use:   "remove <device-id>",
	Short: "Remove a device ID from the suggestions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, st *store.Store, owner string) error {
			if err := st.Forget(ctx, owner, args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s.\n", args[0])
			return nil
		})
	},
}

var recentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every suggestion",
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, st *store.Store, owner string) error {
			if err := st.Clear(ctx, owner); err != nil {
				return err
			}
			fmt.Println("Recent devices cleared.")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(recentCmd)
	recentCmd.AddCommand(recentListCmd, recentRemoveCmd, recentClearCmd)
	recentListCmd.Flags().IntVar(&recentLimit, "limit", store.DefaultSuggestions, "Maximum IDs to list, 0 for all")
}
