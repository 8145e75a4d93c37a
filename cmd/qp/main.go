package main

import (
	"os"

	"github.com/leenamkee/quant-portfolio/cmd/qp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
