package main

import (
	"fmt"

	"github.com/parity-works/pindiff/internal/registry"
	"github.com/parity-works/pindiff/internal/status"
)

func runStatus(flags cliFlags) error {
	reg, err := registry.Load(flags.Registry)
	if err != nil {
		return err
	}

	o := status.Scan(flags.OutDir, reg.Names())
	printStatusTable(o)

	if len(o.Failed()) > 0 {
		return errPinsFailed
	}
	return nil
}

func printStatusTable(o *status.Overview) {
	if o.RunID != "" {
		fmt.Printf("Last run: %s\n\n", o.RunID)
	}

	for _, p := range o.Pins {
		line := fmt.Sprintf("  %-30s [%s]", p.Name, p.Status)
		if p.Error != "" {
			line += " " + p.Error
		}
		fmt.Println(line)
	}

	for _, name := range o.Strays {
		fmt.Printf("  stray artifact: %s\n", name)
	}

	fmt.Println()
	if o.Aggregate != "" {
		fmt.Printf("Aggregate: %s\n", o.Aggregate)
	} else {
		fmt.Println("No aggregate yet. Run 'pindiff run' to produce one.")
	}
	if pending := o.Pending(); len(pending) > 0 {
		fmt.Printf("%d pins not yet run.\n", len(pending))
	}
}
