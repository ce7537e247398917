package main

import (
	"os"

	"github.com/abhisek/lessonstream/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
