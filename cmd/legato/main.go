package main

import "legato/internal/cli"

func main() {
	cli.Execute()
}
