package main

import "github.com/reins-ai/reins/cmd"

func main() {
	cmd.Execute()
}
