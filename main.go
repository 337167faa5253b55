package main

import "github.com/bluecarbon-mrv/portal/cmd"

func main() {
	cmd.Execute()
}
