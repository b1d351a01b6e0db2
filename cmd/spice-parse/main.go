package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/teris-io/cli"
	log "github.com/sirupsen/logrus"

	"its-hmny.dev/spice/pkg/spicelang"
	"its-hmny.dev/spice/pkg/textsink"
)

var Description = strings.ReplaceAll(`
spice-parse reads a SPICE netlist, resolves every model/subcircuit reference it contains
and topologically sorts its subcircuit definitions. With no further options it prints a
deterministic textual replay of the resolved circuit; '--summary' prints counts instead.
`, "\n", " ")

var SpiceParse = cli.New(Description).
	WithArg(cli.NewArg("input", "The netlist (.cir/.sp/.spice) file to parse")).
	WithOption(cli.NewOption("lib", "Parses the input as a '.lib'-style model/subcircuit library").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("ground", "Node name to treat as circuit ground (default \"0\")").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("summary", "Prints element/model/subcircuit counts instead of a full replay").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("verbose", "Enables debug-level logging of the parsing pipeline").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if _, enabled := options["verbose"]; enabled {
		log.SetLevel(log.DebugLevel)
	}

	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	_, library := options["lib"]

	// Runs the grammar, the semantic walker and both resolver passes in one call.
	walker, err := spicelang.Parse(spicelang.ParseOptions{Path: args[0], Library: library})
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
		return -1
	}

	if _, enabled := options["summary"]; enabled {
		fmt.Printf("title:       %s\n", walker.Circuit().Title)
		fmt.Printf("models:      %d\n", len(walker.Models()))
		fmt.Printf("subcircuits: %d\n", len(walker.Subcircuits()))
		fmt.Printf("parameters:  %d\n", len(walker.Parameters()))
		return 0
	}

	ground := options["ground"]
	if ground == "" {
		ground = "0"
	}

	sink := textsink.NewTextSink()
	if err := walker.BuildCircuit(sink, ground); err != nil {
		fmt.Printf("ERROR: Unable to complete 'build' pass: %s\n", err)
		return -1
	}
	fmt.Print(sink.String())

	return 0
}

func main() { os.Exit(SpiceParse.Run(os.Args, os.Stdout)) }
