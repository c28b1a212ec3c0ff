// # cmd/forestry/main.go
package main

import (
	"os"

	"forestry/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
