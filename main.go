package main

import "github.com/kalshi-arb/engine/cmd"

func main() {
	cmd.Execute()
}
