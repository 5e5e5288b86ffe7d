package models

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorse(t *testing.T) {
	order := []Status{StatusOK, StatusLowConfidence, StatusBestEffort, StatusCancelled, StatusParseError}
	for i, a := range order {
		for j, b := range order {
			want := a
			if j > i {
				want = b
			}
			assert.Equal(t, want, Worse(a, b), "%s vs %s", a, b)
		}
	}
}

func TestValue(t *testing.T) {
	assert.Nil(t, Value(math.NaN()))
	assert.Nil(t, Value(math.Inf(-1)))
	require.NotNil(t, Value(2.5))
	assert.Equal(t, 2.5, *Value(2.5))
}

func TestSeries_JSON(t *testing.T) {
	in := Series{1.5, math.NaN(), math.Inf(-1), -2}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null, null, -2]`, string(b))

	var out Series
	require.NoError(t, json.Unmarshal(b, &out))
	require.Len(t, out, 4)
	assert.Equal(t, 1.5, out[0])
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, -2.0, out[3])

	b, err = json.Marshal(PlotData{Series: []Series{nil, {}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"series": [[], []]}`, string(b))
}

func TestBatch(t *testing.T) {
	f0 := 5e9
	results := []*ResonatorResult{
		{Filename: "b.s2p", Status: StatusOK, ResonantFrequency: &f0, Model: &ResonanceModel{Kind: "symmetric"}},
		{Filename: "a.s2p", Status: StatusParseError},
		{Filename: "b.s2p", Status: StatusBestEffort},
	}
	batch := NewBatch(uuid.New(), time.Now(), results)

	got, ok := batch.Get("b.s2p")
	require.True(t, ok)
	assert.Same(t, results[0], got)
	_, ok = batch.Get("missing.s2p")
	assert.False(t, ok)

	want := []SummaryRow{
		{Filename: "b.s2p", Status: StatusOK, ResonantFrequency: &f0, Model: "symmetric"},
		{Filename: "a.s2p", Status: StatusParseError},
		{Filename: "b.s2p", Status: StatusBestEffort},
	}
	assert.Empty(t, cmp.Diff(want, batch.Summary))
	assert.Equal(t, map[Status]int{StatusOK: 1, StatusParseError: 1, StatusBestEffort: 1}, batch.Counts())

	// Round trip through JSON loses the index; lookup still works.
	b, err := json.Marshal(batch)
	require.NoError(t, err)
	var decoded Batch
	require.NoError(t, json.Unmarshal(b, &decoded))
	got, ok = decoded.Get("a.s2p")
	require.True(t, ok)
	assert.Equal(t, StatusParseError, got.Status)
}

func TestSummaryRow_Record(t *testing.T) {
	f0, q0 := 5.0123456789e9, 6000.0
	rows := []SummaryRow{
		{Filename: "a.s2p", Status: StatusOK, ResonantFrequency: &f0, UnloadedQ: &q0, Model: "asymmetric"},
		{Filename: "b.s2p", Status: StatusParseError},
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	require.NoError(t, w.Write(SummaryHeader()))
	for _, r := range rows {
		require.Len(t, r.Record(), len(SummaryHeader()))
		require.NoError(t, w.Write(r.Record()))
	}
	w.Flush()
	require.NoError(t, w.Error())

	assert.Equal(t, "filename,status,resonant_frequency_hz,unloaded_q,loaded_q,coupling_coefficient,model\n"+
		"a.s2p,ok,5012345679,6000,,,asymmetric\n"+
		"b.s2p,parse_error,,,,,\n", b.String())
}

func TestPlotData_MagnitudeTrace(t *testing.T) {
	series := make([]Series, SeriesCount)
	series[SeriesFrequency] = Series{1, 2, 3}
	series[SeriesS21DB] = Series{-10, -3, -10}
	p := &PlotData{Series: series}

	assert.Equal(t, []FrequencyPoint{{1, -10}, {2, -3}, {3, -10}}, p.MagnitudeTrace(SeriesS21DB))
	assert.Empty(t, p.MagnitudeTrace(SeriesS11DB))
	assert.Nil(t, p.MagnitudeTrace(SeriesCount))

	var empty *PlotData
	assert.Nil(t, empty.MagnitudeTrace(SeriesS21DB))
}
