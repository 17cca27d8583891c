// Command jiramcp is the front door to the Jira adapter suite: issue
// subcommands for terminal use, and serve subcommands exposing the REST
// façade, the stdio agent-protocol server, and the SSE agent-protocol server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
