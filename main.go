package main

import "veriseal/authenticity-api/cmd"

func main() {
	cmd.Execute()
}
