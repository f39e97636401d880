package main

import "github.com/lmoretti/aide/cmd"

func main() {
	cmd.Execute()
}
