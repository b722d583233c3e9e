package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/metavc/internal/config"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Add file contents to the staging area",
	Long: `Stage file contents for the next commit.

Directories are staged recursively. Nested metavc repositories are skipped;
their state is recorded automatically at commit time.

Examples:
  metavc add README.md       Stage a single file
  metavc add docs/           Stage a directory recursively
  metavc add .               Stage the whole worktree`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAdd,
}

func runAdd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	green := color.New(color.FgGreen)
	totalStaged := 0

	for _, arg := range args {
		count, err := stagePath(c, arg)
		if err != nil {
			exitError("failed to stage %s: %v", arg, err)
		}
		totalStaged += count
	}

	if totalStaged == 0 {
		green.Println("Nothing new to stage")
		return
	}
	green.Printf("Staged %d file(s)\n", totalStaged)
}

// stagePath stages one file or directory tree, skipping nested repositories
// and the meta directory itself.
func stagePath(c *cmdContext, arg string) (int, error) {
	root := c.Repo.Root
	abs, err := filepath.Abs(arg)
	if err != nil {
		return 0, err
	}

	staged := 0
	err = filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return filepath.SkipDir
		}

		if info.IsDir() {
			if info.Name() == config.MetaDir {
				return filepath.SkipDir
			}
			// A nested repository is tracked as a submodule, not as files.
			if rel != "." && c.Repo.IsOpenSubmodule(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := c.Repo.Store.StageFile(filepath.ToSlash(rel), content); err != nil {
			return err
		}
		staged++
		return nil
	})
	return staged, err
}
