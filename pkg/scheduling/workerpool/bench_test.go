package workerpool

import (
	"context"
	"fmt"
	"testing"

	"github.com/vnykmshr/dispatch/pkg/report"
)

// BenchmarkJobExecution measures the overhead of job submission and execution
func BenchmarkJobExecution(b *testing.B) {
	pool := New(4, 1000)
	defer pool.Shutdown()

	job := JobFunc(func(ctx context.Context) error {
		return nil
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = pool.Submit(job)
		}
	})
}

// BenchmarkJobExecutionWithWork measures performance with actual work
func BenchmarkJobExecutionWithWork(b *testing.B) {
	pool := New(4, 1000)
	defer pool.Shutdown()

	job := JobFunc(func(ctx context.Context) error {
		// Simulate some CPU work
		sum := 0
		for i := 0; i < 1000; i++ {
			sum += i
		}
		_ = sum
		return nil
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = pool.Submit(job)
		}
	})
}

// BenchmarkWorkerCounts compares throughput across pool sizes
func BenchmarkWorkerCounts(b *testing.B) {
	for _, workers := range []int{1, 2, 4, 8, 16} {
		b.Run(fmt.Sprintf("workers-%d", workers), func(b *testing.B) {
			pool := New(workers, 1000)
			job := JobFunc(func(ctx context.Context) error { return nil })

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = pool.Submit(job)
			}
			pool.Shutdown()
		})
	}
}

// BenchmarkFailingJobs measures the cost of containing and reporting failures
func BenchmarkFailingJobs(b *testing.B) {
	pool, err := NewWithConfig(Config{WorkerCount: 4, QueueSize: 1000, Reporter: report.Nop()})
	if err != nil {
		b.Fatal(err)
	}
	defer pool.Shutdown()

	job := JobFunc(func(ctx context.Context) error {
		panic("bench")
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pool.Submit(job)
	}
}
