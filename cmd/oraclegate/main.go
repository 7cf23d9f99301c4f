// Command oraclegate authorizes oracle-gated token transfers.
package main

import "github.com/ppiankov/oraclegate/internal/cli"

func main() {
	cli.Execute()
}
