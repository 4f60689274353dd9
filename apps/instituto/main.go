package main

import (
	"fmt"
	"os"
)

func main() {
	cli := commandLine{
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	err := cli.run(os.Args)
	cli.shutdown()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		os.Exit(1)
	}
}
