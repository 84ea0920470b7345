// Command atomgo serves the AutoML pipeline demo and runs it headless.
//
//	atomgo serve --addr :8501
//	atomgo run --models gnb,rf --scale
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
