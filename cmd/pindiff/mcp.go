package main

import (
	"context"

	"github.com/parity-works/pindiff/internal/mcptools"
	"github.com/parity-works/pindiff/internal/registry"
)

// serveMCP exposes the pipeline as MCP tools on stdio. The harness flags are
// required up front so that generate_reports works once a client calls it.
func serveMCP(ctx context.Context, flags cliFlags) error {
	reg, err := registry.Load(flags.Registry)
	if err != nil {
		return err
	}

	p, err := newPipeline(flags, true)
	if err != nil {
		return err
	}
	defer p.Close()

	svc := mcptools.NewService(p, flags.OutDir, reg.Names())
	return mcptools.RunStdio(ctx, mcptools.NewServer(svc))
}
