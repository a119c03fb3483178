package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/myrag/myrag/internal/cli"
)

func main() {
	cli.Execute()
}
