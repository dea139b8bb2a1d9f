package main

import "github.com/brunopk/paycore/internal/cli"

func main() {
	cli.Execute()
}
