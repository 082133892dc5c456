// Package refresh de-duplicates token refreshes: however many requests are
// rejected at once, one refresh goes to the server and every caller waits on
// its result.
package refresh

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Func performs a refresh and returns the new token pair.
type Func func(ctx context.Context) (*oauth2.Token, error)

// Coordinator shares one in-flight refresh between concurrent callers of the
// same session epoch. Callers from a later epoch never join an earlier
// epoch's flight.
type Coordinator struct {
	group   singleflight.Group
	started atomic.Int64
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Do runs fn unless a refresh for epoch is already in flight, in which case it
// waits for that one. The refresh itself is detached from the caller's
// cancellation so one impatient caller can't fail the others; a cancelled
// caller stops waiting and gets ctx.Err().
func (c *Coordinator) Do(ctx context.Context, epoch uint64, fn Func) (*oauth2.Token, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		c.started.Add(1)
		return fn(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		tok, ok := res.Val.(*oauth2.Token)
		if !ok || tok == nil {
			return nil, errors.New("refresh returned no token")
		}
		return tok, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Started returns how many refreshes have actually been run.
func (c *Coordinator) Started() int64 {
	return c.started.Load()
}
