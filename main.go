package main

import "tourney-media/cmd"

func main() {
	cmd.Execute()
}
