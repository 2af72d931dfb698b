package main

import "github.com/Norgate-AV/kbfw/cmd"

func main() {
	cmd.Execute()
}
