package main

import "github.com/marshallshelly/pebble-entities/cmd/pebble/commands"

func main() {
	commands.Execute()
}
