package main

import "github.com/example/slotbooker/cmd"

func main() {
	cmd.Execute()
}
