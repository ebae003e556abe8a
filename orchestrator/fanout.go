package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/describer"
)

// Analyzer fans a list of image URLs out to the description collaborator,
// bounded by a semaphore, and gathers the results back in input order. It is
// strictly gather-all: the caller gets exactly one result per URL, success
// or failure, only after every in-flight call has resolved.
type Analyzer struct {
	describer   describer.Describer
	semaphore   chan struct{}
	callTimeout time.Duration
}

// NewAnalyzer creates a fan-out analyzer. maxConcurrency <= 0 falls back to
// a default of 10; callTimeout <= 0 disables the per-call deadline.
func NewAnalyzer(d describer.Describer, maxConcurrency int, callTimeout time.Duration) *Analyzer {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Analyzer{
		describer:   d,
		semaphore:   make(chan struct{}, maxConcurrency),
		callTimeout: callTimeout,
	}
}

// AnalyzeAll describes every URL concurrently and returns one analysis per
// URL, order-preserving. Individual failures are captured as data; the only
// error-like outcomes are baked into the result entries themselves.
func (a *Analyzer) AnalyzeAll(ctx context.Context, urls []string) []*analysis.ImageAnalysis {
	results := make([]*analysis.ImageAnalysis, len(urls))
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		go func(index int, url string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[index] = analysis.Failure(url, fmt.Sprintf("panic during analysis: %v", r))
				}
			}()

			results[index] = a.analyzeOne(ctx, url)
		}(i, url)
	}

	wg.Wait()
	return results
}

func (a *Analyzer) analyzeOne(ctx context.Context, url string) *analysis.ImageAnalysis {
	select {
	case a.semaphore <- struct{}{}:
		defer func() { <-a.semaphore }()
	case <-ctx.Done():
		return analysis.Failure(url, "analysis cancelled: "+ctx.Err().Error())
	}

	callCtx := ctx
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	result := a.describer.Describe(callCtx, url)
	if result == nil {
		return analysis.Failure(url, "describer returned no result")
	}
	return result
}
