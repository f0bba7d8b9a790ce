package main

import "cabotin-go/internal/cli"

func main() {
	cli.Execute()
}
