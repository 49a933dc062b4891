package main

import (
	"os"

	"sescli/cmd/sescli/commands"
)

func main() {
	os.Exit(commands.Execute())
}
