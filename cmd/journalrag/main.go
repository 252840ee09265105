package main

import "journalrag/internal/cli"

func main() {
	cli.Execute()
}
