// Command hcd-sim drives simulated host controllers that share an interrupt
// line with a random-priority request workload and endpoint traffic.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
