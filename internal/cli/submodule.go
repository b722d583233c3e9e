package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/metavc/internal/core"
	"github.com/spf13/cobra"
)

var submoduleRelURL string

var submoduleCmd = &cobra.Command{
	Use:   "submodule",
	Short: "Manage nested repositories",
	Long: `Manage the registry of nested repositories tracked by this one.

Each registered submodule is committed as a reference to an exact commit of
the nested repository. Its remote location is derived from the enclosing
repository's remote URL plus the registered relative location ('.' embeds
this repository in itself).`,
	Run: func(cmd *cobra.Command, args []string) {
		runSubmoduleList(cmd, args)
	},
}

var submoduleAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register a nested repository",
	Args:  cobra.ExactArgs(1),
	Run:   runSubmoduleAdd,
}

var submoduleRemoveCmd = &cobra.Command{
	Use:     "remove <path>",
	Aliases: []string{"rm"},
	Short:   "Unregister a nested repository (files on disk are kept)",
	Args:    cobra.ExactArgs(1),
	Run:     runSubmoduleRemove,
}

func init() {
	submoduleAddCmd.Flags().StringVar(&submoduleRelURL, "rel-url", "", "Location relative to the enclosing remote URL (default: the path)")
	submoduleCmd.AddCommand(submoduleAddCmd)
	submoduleCmd.AddCommand(submoduleRemoveCmd)
}

func runSubmoduleList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	statuses, err := core.ListSubmoduleStatuses(c.Repo)
	if err != nil {
		exitError("%v", err)
	}

	if len(statuses) == 0 {
		fmt.Println("No submodules registered")
		return
	}

	green := color.New(color.FgGreen)
	for _, s := range statuses {
		if s.Open {
			green.Printf("open   ")
			fmt.Printf("%s", s.Submodule.Path)
			if s.HeadID != "" {
				fmt.Printf(" @ %s", shortID(s.HeadID))
			}
			fmt.Println()
		} else {
			fmt.Printf("closed %s\n", s.Submodule.Path)
		}
	}
}

func runSubmoduleAdd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := core.RegisterSubmodule(c.Repo, args[0], submoduleRelURL); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Registered submodule '%s'\n", args[0])
}

func runSubmoduleRemove(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := core.UnregisterSubmodule(c.Repo, args[0]); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Unregistered submodule '%s'\n", args[0])
}
