package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/metavc/internal/core"
	"github.com/spf13/cobra"
)

var commitMessage string

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record staged changes as a new commit",
	Long: `Create a new commit from the staging area.

The commit's index also records the current HEAD of every open registered
submodule, so the meta history pins each nested repository at an exact
commit.`,
	Run: runCommit,
}

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Commit message (required)")
	commitCmd.MarkFlagRequired("message")
}

func runCommit(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	commit, err := core.CreateCommit(c.Repo, commitMessage)
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("[%s] %s\n", commit.ShortID(), commit.Message)
	fmt.Printf("%d index entries\n", commit.EntryCount)
}
