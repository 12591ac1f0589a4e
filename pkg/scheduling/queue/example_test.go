package queue_test

import (
	"context"
	"errors"
	"fmt"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/scheduling/queue"
)

func Example() {
	q := queue.New[string](3)
	ctx := context.Background()

	_ = q.Submit(ctx, "first")
	_ = q.Submit(ctx, "second")
	q.Close()

	for {
		item, ok := q.Take()
		if !ok {
			break
		}
		fmt.Println(item)
	}

	// Output:
	// first
	// second
}

func Example_reject() {
	q, _ := queue.NewWithConfig[int](queue.Config{Capacity: 1, Policy: queue.Reject})
	ctx := context.Background()

	fmt.Println(q.Submit(ctx, 1))
	err := q.Submit(ctx, 2)
	fmt.Println(errors.Is(err, dserrors.ErrFull))

	// Output:
	// <nil>
	// true
}
