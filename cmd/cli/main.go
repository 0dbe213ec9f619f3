package main

import "github.com/stevelan1995/orcs/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
