package main

import "github.com/oshokin/pgext-install/cmd/pgext-install/cmd"

func main() {
	cmd.Execute()
}
