// Package main is the entry point for the discovery service binary.
package main

import "github.com/ddoubleg123/carrot-discovery/cmd"

func main() {
	cmd.Execute()
}
