package main

import "github.com/ankurauti1234/Events-Dashboard/cmd"

func main() {
	cmd.Execute()
}
