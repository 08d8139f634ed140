package main

import "go-looper/cli"

func main() {
	cli.Execute()
}
