package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitmage/claude-habitat-sub001/internal/app"
	"github.com/bitmage/claude-habitat-sub001/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read habitat configuration files",
}

var configGetCmd = &cobra.Command{
	Use:   "get <file.yaml> <path>",
	Short: "Print a value from a YAML file",
	Long: `Print the value at a dotted path such as "container.user" or
"repos[0].url". Lists print one "- item" per line (or "---" separated
blocks for lists of maps), maps print as indented JSON and missing values
print nothing.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigGet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := config.QueryFile(app.Default.FS, args[0], args[1])
	if err != nil {
		return err
	}
	if value != "" {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}
