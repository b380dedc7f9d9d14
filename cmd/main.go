package main

import "github.com/dyike/tradecortex/internal/cli"

func main() {
	cli.Run()
}
