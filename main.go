package main

import "legisbot/cmd"

func main() {
	cmd.Execute()
}
