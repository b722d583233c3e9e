package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/metavc/internal/core"
	"github.com/spf13/cobra"
)

var pushForce bool

var pushCmd = &cobra.Command{
	Use:   "push [<remote>] [<ref>[:<target>]]",
	Short: "Publish commits to a remote",
	Long: `Upload local commits to a remote metavc-server and move the target ref.

Before the ref moves, every submodule commit referenced by the published
commits is transferred to the submodule's derived remote and pinned under a
permanent 'commits/<id>' ref. A failed push leaves the remote ref where it
was and is safe to re-run.

Defaults to the only configured remote and the current branch. A ref of the
form <src>:<dst> pushes the local ref <src> to the remote ref <dst>.

Examples:
  metavc push                       Push current branch to default remote
  metavc push origin master         Push 'master' to 'origin'
  metavc push origin master:staging Push 'master' to remote ref 'staging'
  metavc push --force origin master  Force push (overwrites remote)`,
	Args: cobra.MaximumNArgs(2),
	Run:  runPush,
}

func init() {
	pushCmd.Flags().BoolVarP(&pushForce, "force", "f", false, "Force push (overwrite remote ref)")
}

func runPush(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := context.Background()
	st := c.Repo.Store

	remoteName := ""
	source := ""
	target := ""
	if len(args) >= 1 {
		remoteName = args[0]
	}
	if len(args) >= 2 {
		source = args[1]
		if src, dst, ok := strings.Cut(source, ":"); ok {
			if src == "" || dst == "" {
				exitError("invalid refspec '%s' (want <src>:<dst>)", source)
			}
			source, target = src, dst
		}
	}

	remoteName, err := core.ResolveRemoteName(st, remoteName, c.Repo.Config.DefaultRemote)
	if err != nil {
		exitError("%v", err)
	}
	remoteInfo, err := core.GetRemote(st, remoteName)
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Printf("Pushing to %s (%s)...\n", remoteName, remoteInfo.URL)

	result, err := core.Push(ctx, c.Repo, core.DefaultClientFactory, core.PushOptions{
		RemoteName: remoteName,
		Source:     source,
		Target:     target,
		Force:      pushForce,
	}, func(phase string, current, total int) {
		if total > 0 {
			fmt.Printf("\r  %s %d/%d", phase, current, total)
		}
	})
	if err != nil {
		fmt.Println() // newline after progress
		exitError("%v", err)
	}

	fmt.Println() // newline after progress
	if result.UpToDate {
		fmt.Println("Already up-to-date.")
		return
	}

	if result.BranchCreated {
		green.Println("Created remote ref")
	}

	if result.CommitsPushed > 0 {
		green.Printf("Pushed %d commit(s)", result.CommitsPushed)
		if result.PinsCreated > 0 {
			fmt.Printf(", pinned %d submodule commit(s)", result.PinsCreated)
		}
		fmt.Println()
	}

	if pushForce {
		yellow.Println("(force push)")
	}
}
