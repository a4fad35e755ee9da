// Command docindex ingests documents into a dual vector/keyword index and
// serves hybrid search over them.
package main

import (
	"fmt"
	"os"

	"github.com/kestrel-docs/docindex/cmd/docindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cmd.ExitCodeFor(err))
	}
}
