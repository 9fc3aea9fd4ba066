// Command mercuriod is the Mercurio MQTT broker daemon.
//
// Usage:
//
//	mercuriod [-c <config>] [-l <addr>] [-v]
package main

import (
	"os"

	"github.com/frenzox/mercurio/cmd/mercuriod/commands"
)

func main() {
	os.Exit(commands.Execute())
}
