package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/metavc/internal/core"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log [<ref>]",
	Short: "Show commit history",
	Long:  `Display the commit history reachable from a ref (default HEAD).`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runLog,
}

var (
	logOneline bool
	logLimit   int
)

func init() {
	logCmd.Flags().BoolVar(&logOneline, "oneline", false, "Show each commit on a single line")
	logCmd.Flags().IntVarP(&logLimit, "n", "n", 0, "Limit the number of commits to show")
}

func runLog(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	st := c.Repo.Store

	ref := "HEAD"
	if len(args) == 1 {
		ref = args[0]
	}

	head, _ := st.GetHEAD()
	if ref == "HEAD" && head == "" {
		fmt.Println("No commits yet")
		return
	}

	commits, err := core.GetLog(st, ref, logLimit)
	if err != nil {
		exitError("failed to get commit log: %v", err)
	}

	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	for _, commit := range commits {
		isHead := commit.ID == head

		if logOneline {
			yellow.Printf("%s ", commit.ShortID())
			if isHead {
				cyan.Print("(HEAD) ")
			}
			fmt.Println(commit.Message)
			continue
		}

		yellow.Printf("commit %s", commit.ID)
		if isHead {
			cyan.Print(" (HEAD)")
		}
		fmt.Println()
		if commit.IsMergeCommit() {
			fmt.Printf("Merge:  %s %s\n", shortID(commit.ParentID), shortID(commit.MergeParentID))
		}
		fmt.Printf("Date:   %s\n", commit.Timestamp.Format("Mon Jan 2 15:04:05 2006"))
		fmt.Printf("\n    %s\n\n", commit.Message)
	}
}
