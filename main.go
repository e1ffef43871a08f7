package main

import "esocc/cmd"

func main() {
	cmd.Execute()
}
