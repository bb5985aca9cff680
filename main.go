// The main package for the pubimage executable.
package main

import (
	"github.com/JakeFAU/pubimage/cmd"
)

func main() {
	cmd.Execute()
}
