/*
Package queue provides the FIFO shared between the producers and the workers
of a worker pool.

A Queue may be bounded or unbounded. When a bounded queue is full, the Block
policy makes submitters wait for space and the Reject policy fails them with
errors.ErrFull. Once closed, a queue refuses new items with errors.ErrClosed
but keeps handing out the items it already holds; Take reports false only
when the queue is both closed and empty. That property is what lets a pool
drain every accepted job before its workers exit.

Basic usage:

	q := queue.New[string](100)

	go func() {
		for {
			item, ok := q.Take()
			if !ok {
				return // closed and drained
			}
			process(item)
		}
	}()

	if err := q.Submit(ctx, "hello"); err != nil {
		// errors.ErrClosed, errors.ErrFull or a context error
	}
	q.Close()

All methods are safe for concurrent use. Blocking calls that accept a
context return the context's error when it ends first; an interrupted Submit
never enqueues its item.
*/
package queue
