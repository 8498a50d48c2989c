package main

import (
	"fmt"
	"os"

	"github.com/latrastienda/tienda/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tienda:", err)
		os.Exit(1)
	}
}
