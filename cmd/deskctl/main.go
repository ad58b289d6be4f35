package main

import "facedesk/internal/cli"

func main() {
	cli.Execute()
}
