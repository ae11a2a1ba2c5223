package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LocalInk/internal/geom"
)

func newTestPool(t *testing.T, workers int, opts HandlerOptions) *Pool {
	t.Helper()
	p := NewPool(newTestHandler(opts), PoolConfig{Workers: workers, QueueSize: 8}, zap.NewNop())
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPool_AnswersEveryRequest(t *testing.T) {
	p := newTestPool(t, 3, HandlerOptions{})
	ctx := context.Background()

	const n = 30
	go func() {
		for i := 0; i < n; i++ {
			req := Request{
				Operation: OpAnalyze,
				RequestID: fmt.Sprintf("r%d", i),
				Payload:   json.RawMessage(fmt.Sprintf(`{"points":[{"x":0,"y":0},{"x":%d,"y":0}]}`, i)),
			}
			if err := p.Send(ctx, req); err != nil {
				t.Errorf("send %d: %v", i, err)
				return
			}
		}
	}()

	seen := make(map[string]float64)
	for len(seen) < n {
		select {
		case res := <-p.Results():
			var a geom.Analysis
			require.NoError(t, res.Decode(&a))
			seen[res.RequestID] = a.Length
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d results arrived", len(seen), n)
		}
	}
	for i := 0; i < n; i++ {
		assert.Equal(t, float64(i), seen[fmt.Sprintf("r%d", i)])
	}
}

func TestPool_SingleWorkerKeepsOrder(t *testing.T) {
	p := newTestPool(t, 1, HandlerOptions{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Send(ctx, Request{Operation: OpConnectionTest, RequestID: fmt.Sprint(i)}))
	}
	for i := 0; i < 5; i++ {
		res := <-p.Results()
		assert.Equal(t, fmt.Sprint(i), res.RequestID)
	}
}

func TestPool_DropsUnsupportedSilently(t *testing.T) {
	p := newTestPool(t, 1, HandlerOptions{DropUnsupported: true})
	ctx := context.Background()

	require.NoError(t, p.Send(ctx, Request{Operation: "rotate", RequestID: "lost"}))
	require.NoError(t, p.Send(ctx, Request{Operation: OpConnectionTest, RequestID: "ping"}))

	res := <-p.Results()
	assert.Equal(t, "ping", res.RequestID)
}

func TestPool_PayloadIsCopied(t *testing.T) {
	p := newTestPool(t, 1, HandlerOptions{})
	buf := []byte(`{"points":[{"x":0,"y":0},{"x":3,"y":4}]}`)

	require.NoError(t, p.Send(context.Background(), Request{Operation: OpAnalyze, RequestID: "a", Payload: buf}))
	copy(buf, []byte(`garbage!`))

	res := <-p.Results()
	var a geom.Analysis
	require.NoError(t, res.Decode(&a))
	assert.Equal(t, 5.0, a.Length)
}

func TestPool_Close(t *testing.T) {
	p := NewPool(newTestHandler(HandlerOptions{}), PoolConfig{Workers: 2, QueueSize: 1}, zap.NewNop())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.Send(context.Background(), Request{Operation: OpConnectionTest})
	assert.ErrorIs(t, err, ErrClosed)

	_, open := <-p.Results()
	assert.False(t, open)
}

func TestPool_SendRespectsContext(t *testing.T) {
	// nobody reads results, so the single worker blocks and its queue fills
	p := newTestPool(t, 1, HandlerOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = p.Send(ctx, Request{Operation: OpConnectionTest, RequestID: fmt.Sprint(i)})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_ConcurrentSenders(t *testing.T) {
	p := newTestPool(t, 4, HandlerOptions{})
	d := NewDispatcher(p, 5*time.Second, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pts := []geom.Point{geom.Pt(0, 0), geom.Pt(float64(i), 0)}
			a, err := d.Analyze(context.Background(), pts)
			if assert.NoError(t, err) {
				assert.Equal(t, float64(i), a.Length)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, d.Pending())
}
