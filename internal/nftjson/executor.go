package nftjson

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Executor is the abstract "nftables JSON command executor that shells out
// to nft" spec.md §1/§6 places outside the core's scope. The reconciler
// depends only on this interface; CLIExecutor is the one concrete adapter
// this repository ships, since nothing else provides it.
type Executor interface {
	GetCurrentRuleset(ctx context.Context) (*Ruleset, error)
	Apply(ctx context.Context, batch *Batch) error
}

// CLIExecutor shells out to an nft-compatible binary using its JSON mode
// (-j). program defaults to "nft" resolved from PATH when empty, matching
// spec.md §3's "nft_program: optional override for the nftables executable
// path".
type CLIExecutor struct {
	Program string
}

func (e *CLIExecutor) program() string {
	if e.Program != "" {
		return e.Program
	}
	return "nft"
}

// GetCurrentRuleset runs `nft -j list ruleset` and parses its output.
func (e *CLIExecutor) GetCurrentRuleset(ctx context.Context) (*Ruleset, error) {
	cmd := exec.CommandContext(ctx, e.program(), "-j", "list", "ruleset")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("list ruleset: %w (stderr: %s)", err, stderr.String())
	}
	return ParseRuleset(stdout.Bytes())
}

// Apply feeds the batch as JSON to `nft -j -f -`.
func (e *CLIExecutor) Apply(ctx context.Context, batch *Batch) error {
	if batch.Empty() {
		return nil
	}
	payload, err := batch.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.program(), "-j", "-f", "-")
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("apply batch: %w (stderr: %s)", err, stderr.String())
	}
	return nil
}
