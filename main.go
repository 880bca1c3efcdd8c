package main

import "github.com/voidhaze7x/genweaver/cmd"

func main() {
	cmd.Execute()
}
