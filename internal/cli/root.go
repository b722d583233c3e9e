// Package cli implements the command-line interface for metavc.
package cli

import (
	"fmt"
	"os"

	"github.com/kilupskalvis/metavc/internal/repo"
	"github.com/spf13/cobra"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Repo *repo.Repository
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Repo != nil {
		c.Repo.Close()
	}
}

// initContext locates and opens the enclosing repository
func initContext() *cmdContext {
	r, err := repo.Find()
	if err != nil {
		exitError("%v", err)
	}
	return &cmdContext{Repo: r}
}

var rootCmd = &cobra.Command{
	Use:   "metavc",
	Short: "Meta-repository version control",
	Long: `metavc is a git-like CLI for version controlling meta-repositories:
working directories whose commits track plain files together with nested,
independently versioned repositories pinned at exact commits.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(submoduleCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(migrateCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
