// Command scsicorectl is the operator CLI: inquire, inspect, or clone a real
// drive through a Linux SG device. It has no sub-command that attaches to a
// running scsicored. Sub-command
// wiring follows go-tcg-storage's cmd/gosedctl (kong.Parse + a flat `cli`
// struct of command structs, each with its own Run method).
package main

import (
	"github.com/alecthomas/kong"
)

const (
	programName = "scsicorectl"
	programDesc = "SCSI target core control"
)

// cli is the top-level kong command tree.
var cli struct {
	Inquiry inquiryCmd `cmd:"" help:"Send INQUIRY to a device and print its identity"`
	Inspect inspectCmd `cmd:"" help:"Probe the device at --id and print it if found"`
	Clone   cloneCmd   `cmd:"" help:"Clone the device at --id to a local image file"`
}

// cliContext is passed to every sub-command's Run, following gosedctl's
// empty context struct — there is no shared state between sub-commands
// here. Named cliContext rather than gosedctl's bare "context" because this
// file's sub-commands also use the standard library's context package.
type cliContext struct{}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	err := ctx.Run(&cliContext{})
	ctx.FatalIfErrorf(err)
}
