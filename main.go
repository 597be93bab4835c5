package main

import "github.com/user/hardenctl/cmd"

func main() {
	cmd.Execute()
}
