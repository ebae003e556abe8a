package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/describer"
)

func TestAnalyzeAllPreservesOrder(t *testing.T) {
	d := describer.Func(func(ctx context.Context, url string) *analysis.ImageAnalysis {
		// Later URLs finish first.
		if strings.HasSuffix(url, "1.jpg") {
			time.Sleep(10 * time.Millisecond)
		}
		return &analysis.ImageAnalysis{URL: url, OK: true, Description: "ok"}
	})

	urls := []string{
		"https://cdn.example.com/1.jpg",
		"https://cdn.example.com/2.jpg",
		"https://cdn.example.com/3.jpg",
	}
	results := NewAnalyzer(d, 4, time.Second).AnalyzeAll(context.Background(), urls)

	if len(results) != len(urls) {
		t.Fatalf("expected %d results, got %d", len(urls), len(results))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("result %d: expected %s, got %s", i, urls[i], r.URL)
		}
	}
}

func TestAnalyzeAllPartialFailure(t *testing.T) {
	d := describer.Func(func(ctx context.Context, url string) *analysis.ImageAnalysis {
		if strings.Contains(url, "bad") {
			return analysis.Failure(url, "not an image")
		}
		return &analysis.ImageAnalysis{URL: url, OK: true, Description: "ok"}
	})

	urls := []string{
		"https://cdn.example.com/good1.jpg",
		"https://cdn.example.com/bad.html",
		"https://cdn.example.com/good2.jpg",
	}
	results := NewAnalyzer(d, 2, time.Second).AnalyzeAll(context.Background(), urls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].OK || results[1].Error == "" {
		t.Errorf("expected captured failure for bad URL, got %+v", results[1])
	}
	if !results[0].OK || !results[2].OK {
		t.Error("failure of one URL must not affect the others")
	}

	successful := analysis.Successful(results)
	if len(successful) != 2 {
		t.Errorf("expected 2 successful analyses, got %d", len(successful))
	}
}

func TestAnalyzeAllRecoversPanic(t *testing.T) {
	d := describer.Func(func(ctx context.Context, url string) *analysis.ImageAnalysis {
		panic("describer bug")
	})

	results := NewAnalyzer(d, 2, time.Second).AnalyzeAll(context.Background(),
		[]string{"https://cdn.example.com/a.jpg"})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].OK || results[0].Error == "" {
		t.Errorf("expected panic captured as failure, got %+v", results[0])
	}
}

func TestAnalyzeAllBoundsConcurrency(t *testing.T) {
	var inFlight, maxInFlight int32
	d := describer.Func(func(ctx context.Context, url string) *analysis.ImageAnalysis {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &analysis.ImageAnalysis{URL: url, OK: true}
	})

	urls := make([]string, 12)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://cdn.example.com/%d.jpg", i)
	}

	NewAnalyzer(d, 3, time.Second).AnalyzeAll(context.Background(), urls)

	if got := atomic.LoadInt32(&maxInFlight); got > 3 {
		t.Errorf("expected at most 3 concurrent calls, saw %d", got)
	}
}

func TestAnalyzeAllEmptyList(t *testing.T) {
	results := NewAnalyzer(okDescriber(), 2, time.Second).AnalyzeAll(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results for empty URL list, got %d", len(results))
	}
}
