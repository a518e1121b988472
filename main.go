package main

import (
	"os"

	"github.com/stepguard/stepguard/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
