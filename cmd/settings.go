package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ankurauti1234/Events-Dashboard/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change saved preferences",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print saved preferences",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		keys := config.Keys()
		if len(args) == 1 {
			if !lo.Contains(keys, args[0]) {
				fmt.Printf("Error: unknown setting %q\n", args[0])
				os.Exit(1)
			}
			keys = args
		}

		values := lo.Associate(keys, func(k string) (string, string) {
			return k, viper.GetString(k)
		})

		if jsonOutput {
			printJSON(values)
			return
		}
		if len(args) == 1 {
			fmt.Println(values[args[0]])
			return
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Key", "Value"})
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, k := range keys {
			table.Append([]string{k, values[k]})
		}
		table.Render()
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a preference",
	Long: fmt.Sprintf(`Validates and saves a preference. Known keys: %v

Examples:
  apm settings set timezone "Nepal Time"
  apm settings set refresh_interval 1m`, config.Keys()),
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Set(args[0], args[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s set to %s\n", args[0], viper.GetString(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
}
