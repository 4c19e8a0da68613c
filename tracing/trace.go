//go:build trace

package tracing

import (
	"context"
	"os"
	"runtime/trace"
)

// DefaultFile receives the execution trace when tracing is compiled in.
const DefaultFile = "javaidx-trace.out"

var traceFile *os.File

// Start enables runtime tracing and writes trace data to path, or to
// DefaultFile when path is empty.
func Start(path string) error {
	if path == "" {
		path = DefaultFile
	}
	var err error
	traceFile, err = os.Create(path)
	if err != nil {
		return err
	}
	if err := trace.Start(traceFile); err != nil {
		traceFile.Close()
		traceFile = nil
		return err
	}
	return nil
}

// Stop stops runtime tracing and closes the trace file.
func Stop() {
	trace.Stop()
	if traceFile != nil {
		traceFile.Close()
		traceFile = nil
	}
}

// StartTask begins a trace task, one per decoded file.
func StartTask(ctx context.Context, name string) (context.Context, func()) {
	ctx, task := trace.NewTask(ctx, name)
	return ctx, task.End
}

func StartRegion(ctx context.Context, name string) func() {
	region := trace.StartRegion(ctx, name)
	return region.End
}

func Log(ctx context.Context, category, message string) {
	trace.Log(ctx, category, message)
}
