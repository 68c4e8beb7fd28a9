// Command alarmctl is the rule-authoring CLI described in spec §6.
package main

import (
	"fmt"
	"os"

	"github.com/mt-monitoring/alarmd/cmd/alarmctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "alarmctl:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
