package main

import "github.com/icco/beatsblox/cmd"

func main() {
	cmd.Execute()
}
