package main

import "timepilot/cmd"

func main() {
	cmd.Execute()
}
