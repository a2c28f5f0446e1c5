package main

import "github.com/supergoodsystems/pii-scrub/internal/cli"

func main() {
	cli.Execute()
}
