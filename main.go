package main

import "helmsman/cmd"

func main() {
	cmd.Execute()
}
