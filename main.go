package main

import "github.com/mabhi256/jlinkcheck/cmd"

func main() {
	cmd.Execute()
}
