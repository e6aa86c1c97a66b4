package main

import "github.com/estesp/statbench/cmd"

func main() {
	cmd.Execute()
}
