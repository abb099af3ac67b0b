package main

import "github.com/mcoot/fairway/internal/cli"

func main() {
	cli.Execute()
}
