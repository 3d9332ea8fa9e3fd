package main

import (
	"fmt"
	"os"
)

func main() {
	root, release := newRootCmd()
	err := root.Execute()
	release()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
