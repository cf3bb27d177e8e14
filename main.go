/*
Copyright © 2026 SRPLAN AUTHORS
*/
package main

import "github.com/olapctl/srplan/cmd"

func main() {
	cmd.Execute()
}
