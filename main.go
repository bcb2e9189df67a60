package main

import "snowtools/cmd"

func main() {
	cmd.Execute()
}
