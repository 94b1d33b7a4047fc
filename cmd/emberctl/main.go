package main

import (
	"log"

	"github.com/emberhook/emberhook/cmd/emberctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
