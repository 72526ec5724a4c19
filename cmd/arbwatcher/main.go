package main

import "odds-arb-watcher/internal/cli"

func main() {
	cli.Execute()
}
