package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilupskalvis/metavc/internal/config"
	"github.com/kilupskalvis/metavc/internal/repo"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [<repo-id>]",
	Short: "Initialize a new metavc repository",
	Long: `Initialize a new metavc repository in the current directory.
This creates a .metavc directory to store version control data.

The repository ID defaults to the directory name and identifies this
repository when it is embedded as a submodule elsewhere.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInit,
}

func runInit(cmd *cobra.Command, args []string) {
	cwd, err := os.Getwd()
	if err != nil {
		exitError("%v", err)
	}

	if _, err := os.Stat(filepath.Join(cwd, config.MetaDir)); err == nil {
		exitError("metavc repository already exists")
	}

	repoID := ""
	if len(args) == 1 {
		repoID = args[0]
	}

	r, err := repo.Init(cwd, repoID)
	if err != nil {
		exitError("failed to initialize repository: %v", err)
	}
	defer r.Close()

	fmt.Printf("Initialized empty metavc repository in %s/\n", config.MetaDir)
	fmt.Printf("Repository ID: %s\n", r.ID())
}
