package main

import (
	"github.com/foomo/receptionsuite/cmd"
)

func main() {
	cmd.Execute()
}
