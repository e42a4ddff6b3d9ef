package main

import "github.com/jibsandbox/jib-gateway/internal/cli"

func main() {
	cli.Execute()
}
