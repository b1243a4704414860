// The main package for the rulecrawler executable.
package main

import (
	"github.com/JakeFAU/rulecrawler/cmd"
)

func main() {
	cmd.Execute()
}
