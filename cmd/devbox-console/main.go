package main

import (
	"os"

	"github.com/labring/devbox-console/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
