package main

import "github.com/endorses/voipfilter/cmd"

func main() {
	cmd.Execute()
}
