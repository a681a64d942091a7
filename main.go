package main

import "github.com/markb/reminderd/cmd"

func main() {
	cmd.Execute()
}
