// Command metavc is the meta-repository version control CLI.
package main

import (
	"os"

	"github.com/kilupskalvis/metavc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
