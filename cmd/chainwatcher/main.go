package main

import (
	"chain-price-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
