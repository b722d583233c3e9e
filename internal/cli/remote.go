package cli

import (
	"fmt"

	"github.com/kilupskalvis/metavc/internal/core"
	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage remote repositories",
	Long: `Manage the remotes this repository publishes to.

A remote URL names one repository on a metavc-server, e.g.
https://host:8730/myrepo. Submodule destinations are derived from this URL
and each submodule's registered relative location; submodules never use
remotes of their own.`,
	Run: func(cmd *cobra.Command, args []string) {
		runRemoteList(cmd, args)
	},
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a remote",
	Args:  cobra.ExactArgs(2),
	Run:   runRemoteAdd,
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a remote",
	Args:    cobra.ExactArgs(1),
	Run:     runRemoteRemove,
}

var remoteSetURLCmd = &cobra.Command{
	Use:   "set-url <name> <url>",
	Short: "Change a remote's URL",
	Args:  cobra.ExactArgs(2),
	Run:   runRemoteSetURL,
}

var remoteTokenCmd = &cobra.Command{
	Use:   "token <name> [<token>]",
	Short: "Set or clear a remote's auth token",
	Long: `Store an authentication token for a remote. With no token argument the
stored token is cleared. The METAVC_REMOTE_TOKEN and
METAVC_REMOTE_TOKEN_<NAME> environment variables override stored tokens.`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runRemoteToken,
}

func init() {
	remoteCmd.AddCommand(remoteAddCmd)
	remoteCmd.AddCommand(remoteRemoveCmd)
	remoteCmd.AddCommand(remoteSetURLCmd)
	remoteCmd.AddCommand(remoteTokenCmd)
}

func runRemoteList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	remotes, err := core.ListRemotes(c.Repo.Store)
	if err != nil {
		exitError("%v", err)
	}

	if len(remotes) == 0 {
		fmt.Println("No remotes configured")
		return
	}

	for _, r := range remotes {
		fmt.Printf("%s\t%s\n", r.Name, r.URL)
	}
}

func runRemoteAdd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := core.AddRemote(c.Repo.Store, args[0], args[1]); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Added remote '%s' (%s)\n", args[0], args[1])
}

func runRemoteRemove(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := core.RemoveRemote(c.Repo.Store, args[0]); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Removed remote '%s'\n", args[0])
}

func runRemoteSetURL(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := core.SetRemoteURL(c.Repo.Store, args[0], args[1]); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Updated remote '%s' to %s\n", args[0], args[1])
}

func runRemoteToken(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	token := ""
	if len(args) == 2 {
		token = args[1]
	}

	if err := core.SetRemoteToken(c.Repo.Store, args[0], token); err != nil {
		exitError("%v", err)
	}
	if token == "" {
		fmt.Printf("Cleared token for remote '%s'\n", args[0])
	} else {
		fmt.Printf("Stored token for remote '%s'\n", args[0])
	}
}
