// Command cyclegcctl is the operator CLI and demo harness for the
// cyclegc collector core. Unlike hydraidectl, there is no long-running
// server process to dial into (this core has no wire protocol, per
// its Non-goals): every subcommand constructs its own in-process
// *gc.GC, so enable/disable/collect/stats act on that invocation's own
// collector rather than a shared daemon. stress and observe build a
// synthetic mutator workload to make the collector's behavior visible.
package main

import (
	"fmt"
	"os"

	"github.com/vesperlang/cyclegc/cmd/cyclegcctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
