package main

import "farmdirect/commands"

func main() {
	commands.Execute()
}
