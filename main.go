package main

import "github.com/squireai/squire/cmd"

func main() {
	cmd.Execute()
}
