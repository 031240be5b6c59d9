package main

import "github.com/tiz36/ztask/internal/cli"

func main() {
	cli.Execute()
}
