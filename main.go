// main.go
//
// Entry point; CLI handling lives in the Cobra commands under cmd/

package main

import (
	"github.com/inference-sim/alloc-sim/cmd"
)

func main() {
	cmd.Execute()
}
