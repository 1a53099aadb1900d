package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleMessage_Dispatch(t *testing.T) {
	var pools, resolved []uint64
	f := NewIndexerFeed("ws://indexer",
		func(_ context.Context, id uint64) { pools = append(pools, id) },
		func(_ context.Context, id uint64) { resolved = append(resolved, id) },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	f.handleMessage(context.Background(), []byte(`{"event":"pool_update","market_id":7}`))
	f.handleMessage(context.Background(), []byte(`{"event":"market_resolved","market_id":9}`))
	// Unknown events, missing market IDs and junk are dropped.
	f.handleMessage(context.Background(), []byte(`{"event":"heartbeat"}`))
	f.handleMessage(context.Background(), []byte(`{"event":"pool_update"}`))
	f.handleMessage(context.Background(), []byte(`not json`))

	assert.Equal(t, []uint64{7}, pools)
	assert.Equal(t, []uint64{9}, resolved)
}
