package main

import "proxyload/cmd"

func main() {
	cmd.Execute()
}
