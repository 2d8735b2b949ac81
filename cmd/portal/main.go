package main

import "github.com/jrsteele09/go-elearning-portal/cmd/portal/cmd"

func main() {
	cmd.Execute()
}
