//go:build trace

// Package tracing wraps runtime/trace. Builds without the trace tag compile
// every helper to a no-op.
package tracing

import (
	"context"
	"os"
	"runtime/trace"
)

// OutputFile receives the execution trace.
const OutputFile = "filetally.trace"

var traceFile *os.File

func Enabled() bool { return true }

func Start() error {
	f, err := os.OpenFile(OutputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		f.Close()
		return err
	}
	traceFile = f
	return nil
}

func Stop() {
	trace.Stop()
	if traceFile != nil {
		traceFile.Close()
		traceFile = nil
	}
}

// StartTask begins a task covering the handling of one input.
func StartTask(ctx context.Context, name string) (context.Context, func()) {
	ctx, task := trace.NewTask(ctx, name)
	return ctx, task.End
}

func StartRegion(ctx context.Context, name string) func() {
	return trace.StartRegion(ctx, name).End
}

func Log(ctx context.Context, category, message string) {
	trace.Log(ctx, category, message)
}
