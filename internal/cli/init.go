package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/lumen/internal/config"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter audit configuration",
		Long: `Write a starter configuration with two example pages. The file is
not overwritten unless --force is given.

Examples:
  lumen init
  lumen init -c site/audit.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			force, _ := cmd.Flags().GetBool("force")
			if err := config.Write(config.Template(), path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "audit.yaml", "Path of the file to create")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}
