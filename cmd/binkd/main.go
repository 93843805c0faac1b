package main

import (
	"os"

	"github.com/tonyfindev/BinkOS-sub002/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
