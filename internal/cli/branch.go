package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/metavc/internal/core"
	"github.com/spf13/cobra"
)

var branchDelete bool

var branchCmd = &cobra.Command{
	Use:   "branch [<name>] [<start-point>]",
	Short: "List, create, or delete branches",
	Long: `Manage branches.

Examples:
  metavc branch                    List branches
  metavc branch feature            Create 'feature' at HEAD
  metavc branch feature HEAD~2     Create 'feature' two commits back
  metavc branch -d feature         Delete 'feature'`,
	Args: cobra.MaximumNArgs(2),
	Run:  runBranch,
}

var switchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Switch to another branch",
	Args:  cobra.ExactArgs(1),
	Run:   runSwitch,
}

func init() {
	branchCmd.Flags().BoolVarP(&branchDelete, "delete", "d", false, "Delete a branch")
	rootCmd.AddCommand(switchCmd)
}

func runBranch(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	st := c.Repo.Store

	if branchDelete {
		if len(args) != 1 {
			exitError("branch -d requires exactly one branch name")
		}
		if err := core.DeleteBranch(st, args[0]); err != nil {
			exitError("%v", err)
		}
		fmt.Printf("Deleted branch '%s'\n", args[0])
		return
	}

	if len(args) == 0 {
		listBranches(c)
		return
	}

	startPoint := ""
	if len(args) == 2 {
		startPoint = args[1]
	}
	if err := core.CreateBranch(st, args[0], startPoint); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Created branch '%s'\n", args[0])
}

func listBranches(c *cmdContext) {
	branches, current, err := core.ListBranches(c.Repo.Store)
	if err != nil {
		exitError("failed to list branches: %v", err)
	}

	if len(branches) == 0 {
		fmt.Println("No branches yet")
		return
	}

	green := color.New(color.FgGreen)
	for _, b := range branches {
		if b.Name == current {
			green.Printf("* %s", b.Name)
			fmt.Printf(" %s\n", shortID(b.CommitID))
		} else {
			fmt.Printf("  %s %s\n", b.Name, shortID(b.CommitID))
		}
	}
}

func runSwitch(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := core.SwitchBranch(c.Repo.Store, args[0]); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Switched to branch '%s'\n", args[0])
}
