package main

import (
	"fmt"
	"os"
)

var version = "0.1.0-dev"

func main() {
	a := &app{}
	root := newRootCmd(a)
	err := root.Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
