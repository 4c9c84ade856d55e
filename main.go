package main

import "github.com/nethalo/dbcharset/cmd"

func main() {
	cmd.Execute()
}
