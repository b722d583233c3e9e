package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <v1-database>",
	Short: "Import history from a v1 sqlite database",
	Long: `Import commits and branches from a legacy v1 repository database
(sqlite) into this repository. Existing commits are left untouched; the
import is safe to re-run.`,
	Args: cobra.ExactArgs(1),
	Run:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	result, err := c.Repo.Store.ImportLegacy(args[0])
	if err != nil {
		exitError("migration failed: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Imported %d commit(s), %d branch(es)\n", result.Commits, result.Branches)
	fmt.Println("Review branches with 'metavc branch' before pushing.")
}
