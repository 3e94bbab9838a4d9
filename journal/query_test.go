package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFill(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	at := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	want := FillRecord{
		OrderID:     "O123",
		SessionID:   "S1",
		Time:        at,
		Tick:        12,
		Symbol:      "005930",
		Side:        "SELL",
		Quantity:    5,
		Price:       70000,
		FilledQty:   3,
		FillPrice:   69950,
		Executed:    true,
		Reason:      "stop_loss",
		Score:       0.25,
		RealizedPnL: -1500,
		PnLPct:      -0.007,
	}
	require.NoError(t, j.RecordFill(want))

	got, err := j.GetFill("O123")
	require.NoError(t, err)
	assert.True(t, got.Time.Equal(want.Time))
	got.Time = want.Time
	assert.Equal(t, want, got)
}

func TestGetFillNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.GetFill("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListFillsOrdering(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	recs := []FillRecord{
		{OrderID: "C", SessionID: "S2", Time: base.Add(2 * time.Second), Tick: 3, Symbol: "AAA", Side: "SELL"},
		{OrderID: "A", SessionID: "S1", Time: base, Tick: 1, Symbol: "AAA", Side: "BUY", Executed: true},
		{OrderID: "B", SessionID: "S1", Time: base.Add(time.Second), Tick: 2, Symbol: "BBB", Side: "BUY", Error: "order rejected"},
	}
	for _, r := range recs {
		require.NoError(t, j.RecordFill(r))
	}

	all, err := j.ListFills()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].OrderID)
	assert.Equal(t, "B", all[1].OrderID)
	assert.Equal(t, "C", all[2].OrderID)
	assert.True(t, all[0].Executed)
	assert.Equal(t, "order rejected", all[1].Error)

	aaa, err := j.ListFillsBySymbol("AAA")
	require.NoError(t, err)
	require.Len(t, aaa, 2)
	assert.Equal(t, "A", aaa[0].OrderID)

	s1, err := j.ListFillsBySession("S1")
	require.NoError(t, err)
	assert.Len(t, s1, 2)

	none, err := j.ListFillsBySymbol("ZZZ")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSessions(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	start := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	first := SessionRecord{
		SessionID:      "S1",
		Start:          start,
		End:            start.Add(time.Hour),
		Ticks:          3600,
		Buys:           4,
		Sells:          3,
		Wins:           2,
		Losses:         1,
		RealizedPnL:    120.5,
		RealizedPnLPct: 1.8,
		AvgPnLPct:      0.6,
		FinalEquity:    10120.5,
		OpenPositions:  1,
		ExitReasons:    map[string]int{"take_profit": 2, "stop_loss": 1},
	}
	second := SessionRecord{SessionID: "S2", Start: start.Add(24 * time.Hour), End: start.Add(25 * time.Hour)}

	require.NoError(t, j.RecordSession(first))
	require.NoError(t, j.RecordSession(second))

	got, err := j.GetSession("S1")
	require.NoError(t, err)
	assert.Equal(t, first.ExitReasons, got.ExitReasons)
	assert.Equal(t, 10120.5, got.FinalEquity)
	assert.True(t, got.End.Equal(first.End))

	list, err := j.ListSessions()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "S2", list[0].SessionID)
	assert.Nil(t, list[0].ExitReasons)

	_, err = j.GetSession("missing")
	assert.ErrorContains(t, err, "not found")

	// re-recording replaces the summary
	first.Ticks = 1
	require.NoError(t, j.RecordSession(first))
	got, err = j.GetSession("S1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Ticks)
}
