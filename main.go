package main

import "k8sviz/cmd"

func main() {
	cmd.Execute()
}
