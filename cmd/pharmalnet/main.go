package main

import (
	"github.com/pharmalnet/dti/cmd/pharmalnet/cmd"
)

func main() {
	cmd.Execute()
}
