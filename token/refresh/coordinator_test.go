package refresh_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/prompting-recipe/token/refresh"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestCoordinator_SharesInFlightRefresh(t *testing.T) {
	c := refresh.NewCoordinator()
	release := make(chan struct{})

	fn := func(ctx context.Context) (*oauth2.Token, error) {
		<-release
		return &oauth2.Token{AccessToken: "A2", RefreshToken: "R2"}, nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*oauth2.Token, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Do(context.Background(), 1, fn)
		}(i)
	}

	require.Eventually(t, func() bool { return c.Started() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond) // let the remaining callers join
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, c.Started())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "A2", results[i].AccessToken)
	}
}

func TestCoordinator_SequentialRefreshesRunAgain(t *testing.T) {
	c := refresh.NewCoordinator()
	fn := func(ctx context.Context) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "A"}, nil
	}

	_, err := c.Do(context.Background(), 1, fn)
	require.NoError(t, err)
	_, err = c.Do(context.Background(), 1, fn)
	require.NoError(t, err)
	require.EqualValues(t, 2, c.Started())
}

func TestCoordinator_EpochsDoNotShare(t *testing.T) {
	c := refresh.NewCoordinator()
	release := make(chan struct{})
	slow := func(ctx context.Context) (*oauth2.Token, error) {
		<-release
		return &oauth2.Token{AccessToken: "old"}, nil
	}
	fast := func(ctx context.Context) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "new"}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Do(context.Background(), 1, slow)
	}()
	require.Eventually(t, func() bool { return c.Started() == 1 }, time.Second, time.Millisecond)

	tok, err := c.Do(context.Background(), 2, fast)
	require.NoError(t, err)
	require.Equal(t, "new", tok.AccessToken)

	close(release)
	<-done
}

func TestCoordinator_ErrorIsShared(t *testing.T) {
	c := refresh.NewCoordinator()
	boom := errors.New("refresh rejected")

	_, err := c.Do(context.Background(), 1, func(ctx context.Context) (*oauth2.Token, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestCoordinator_CancelledWaiter(t *testing.T) {
	c := refresh.NewCoordinator()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, _ = c.Do(context.Background(), 1, func(ctx context.Context) (*oauth2.Token, error) {
			<-release
			return &oauth2.Token{AccessToken: "A2"}, nil
		})
	}()
	require.Eventually(t, func() bool { return c.Started() == 1 }, time.Second, time.Millisecond)

	cancel()
	_, err := c.Do(ctx, 1, nil)
	require.ErrorIs(t, err, context.Canceled)
}
