// internal/run/pool.go
package run

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// runFileProcessingPool fans the file list out over a bounded worker pool.
func (o *Orchestrator) runFileProcessingPool(ctx context.Context, files []string) map[string]FileResult {
	results := make(map[string]FileResult)
	var wg sync.WaitGroup
	// Buffer the channel for every file so workers never block on send.
	resultChan := make(chan FileResult, len(files))
	sem := make(chan struct{}, o.cfg.Workers)

	for i, path := range files {
		select {
		case <-ctx.Done():
			o.handleRemainingFilesOnCancel(ctx, files[i:], results)
			goto endloop
		default:
		}

		wg.Add(1)
		go func(p string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				o.logger.Warn("Context cancelled while waiting for worker slot", zap.String("file", p), zap.Error(ctx.Err()))
				resultChan <- FileResult{
					Path:       p,
					Skipped:    true,
					SkipReason: "Context cancelled while waiting for worker slot",
				}
				return
			}

			resultChan <- o.processSingleFile(ctx, p)
		}(path)
	}

endloop:
	go func() {
		wg.Wait()
		close(resultChan)
		o.logger.Debug("All file processing goroutines in pool have completed.")
	}()

	for res := range resultChan {
		results[res.Path] = res
		o.metrics.FilesProcessedTotal.WithLabelValues(res.Outcome()).Inc()
		o.metrics.FileProcessingDuration.WithLabelValues(res.Outcome()).Observe(res.Duration.Seconds())
	}
	return results
}

// handleRemainingFilesOnCancel fills in skip results for files never started
// when the run context is cancelled.
func (o *Orchestrator) handleRemainingFilesOnCancel(ctx context.Context, remaining []string, results map[string]FileResult) {
	if len(remaining) == 0 {
		return
	}
	o.logger.Warn("Context cancelled; marking remaining files as skipped",
		zap.String("first_remaining_file", remaining[0]),
		zap.Int("count_remaining", len(remaining)),
		zap.Error(ctx.Err()),
	)
	for _, path := range remaining {
		if _, exists := results[path]; !exists {
			results[path] = FileResult{
				Path:       path,
				Skipped:    true,
				SkipReason: fmt.Sprintf("Context cancelled before processing could start: %v", ctx.Err()),
			}
		}
	}
}
