package s3blob

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilbet/veilbet/internal/domain"
)

type memWriter struct {
	paths        []string
	contentTypes []string
	bodies       [][]byte
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.paths = append(w.paths, path)
	w.contentTypes = append(w.contentTypes, contentType)
	w.bodies = append(w.bodies, body)
	return nil
}

func TestArchiveMarket_ExportsResolvedLedger(t *testing.T) {
	writer := &memWriter{}
	arch := NewArchiver(writer)
	arch.now = func() time.Time { return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) }

	market := domain.Market{
		ID: 7, Kind: domain.MarketKindBinary, Question: "Will it rain?",
		IsResolved: true, WinningOption: 1,
	}
	records := []domain.LocalWagerRecord{
		{ID: "r1", PlacedAt: time.Unix(100, 0).UTC(), OptionIdx: 1, Amount: 50, TxHash: "0xabc", PriceAtWager: 40},
	}

	require.NoError(t, arch.ArchiveMarket(context.Background(), market, records))
	require.Len(t, writer.paths, 1)
	assert.Equal(t, "archive/markets/7.json", writer.paths[0])
	assert.Equal(t, "application/json", writer.contentTypes[0])

	var doc archiveDoc
	require.NoError(t, json.Unmarshal(writer.bodies[0], &doc))
	assert.Equal(t, uint64(7), doc.MarketID)
	assert.Equal(t, 1, doc.WinningOption)
	require.Len(t, doc.Wagers, 1)
	assert.Equal(t, "0xabc", doc.Wagers[0].TxHash)
	assert.InDelta(t, 50.0, doc.Wagers[0].Amount, 0.001)
}

func TestArchiveMarket_RejectsUnresolvedMarket(t *testing.T) {
	writer := &memWriter{}
	arch := NewArchiver(writer)

	err := arch.ArchiveMarket(context.Background(), domain.Market{ID: 7}, nil)
	require.Error(t, err)
	assert.Empty(t, writer.paths)
}
