package main

import "github.com/openpbo/pbo/cmd"

func main() {
	cmd.Execute()
}
