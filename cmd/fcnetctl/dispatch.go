package main

import (
	"context"
	"fmt"

	"github.com/fcnet/fcnet/internal/nftjson"
	"github.com/fcnet/fcnet/internal/rtnl"
	"github.com/fcnet/fcnet/internal/ruleset"
	"github.com/fcnet/fcnet/internal/topology/namespaced"
	"github.com/fcnet/fcnet/internal/topology/simple"
)

type operation int

const (
	opAdd operation = iota
	opCheck
	opDelete
)

// run builds the engine the requested topology needs and dispatches op
// against it. Shared by cmdAdd/cmdCheck/cmdDelete so the three subcommands
// differ only in which operation they request.
func (g *cmdGlobal) run(f *netFlags, op operation) error {
	ctx := context.Background()
	nftProgram := g.flagNftProg

	switch f.topology {
	case "simple":
		n, err := f.network(nftProgram)
		if err != nil {
			return err
		}
		eng := &simple.Engine{
			Ops:        rtnl.LinkOps{},
			Reconciler: &ruleset.Reconciler{Executor: &nftjson.CLIExecutor{Program: nftProgram}},
			Log:        g.log,
		}
		switch op {
		case opAdd:
			return eng.Add(ctx, n)
		case opCheck:
			return eng.Check(ctx, n)
		case opDelete:
			return eng.Delete(ctx, n)
		}
	case "namespaced":
		n, err := f.namespacedNetwork(nftProgram)
		if err != nil {
			return err
		}
		eng := &namespaced.Engine{
			Ops:        rtnl.LinkOps{},
			Reconciler: &ruleset.Reconciler{Executor: &nftjson.CLIExecutor{Program: nftProgram}},
			Log:        g.log,
		}
		switch op {
		case opAdd:
			return eng.Add(ctx, n)
		case opCheck:
			return eng.Check(ctx, n)
		case opDelete:
			return eng.Delete(ctx, n)
		}
	default:
		return fmt.Errorf("unknown --topology %q, want simple or namespaced", f.topology)
	}
	return nil
}
