package main

import "github.com/nfrund/collabhub/cmd/collabhub/cmd"

func main() {
	cmd.Execute()
}
