package main

import (
	"fmt"
	"os"

	osmwatch "github.com/osmwatch/osmwatch"
	"github.com/osmwatch/osmwatch/config"
	"github.com/osmwatch/osmwatch/log"
	"github.com/osmwatch/osmwatch/watch"
)

func printCmds() {
	fmt.Fprintf(os.Stderr, "Usage: %s COMMAND [args]\n\n", os.Args[0])
	fmt.Println("Available commands:")
	fmt.Println("\trun")
	fmt.Println("\tversion")
}

func main() {
	if len(os.Args) <= 1 {
		printCmds()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		opts := config.ParseRun(os.Args[2:])
		watch.Run(opts)
	case "version":
		fmt.Println(osmwatch.Version)
		os.Exit(0)
	default:
		printCmds()
		log.Fatalf("[fatal] invalid command: '%s'", os.Args[1])
	}
}
