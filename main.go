package main

import "github.com/provet-dev/provet/internal/cli"

func main() {
	cli.Execute()
}
