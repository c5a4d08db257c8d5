package main

import "github.com/naka-gawa/repo-redirector/cmd"

func main() {
	cmd.Execute()
}
