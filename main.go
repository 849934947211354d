package main

import (
	"os"

	"github.com/dong11hyun/LogisFlow-Smart-Logistics-Management-System/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
