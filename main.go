package main

import (
	"os"

	"github.com/nicebartender/botgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
