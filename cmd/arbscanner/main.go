package main

import "sports-arb-scanner/internal/cli"

func main() {
	cli.Execute()
}
