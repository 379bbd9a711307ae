package aggregate

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nicktill/ipedscomps/pkg/tabular"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memSource struct {
	name    string
	data    string
	openErr error
	opens   *atomic.Int32
}

func (s memSource) Name() string { return s.name }

func (s memSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.opens != nil {
		s.opens.Add(1)
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	return io.NopCloser(strings.NewReader(s.data)), nil
}

type memRegistry map[int]tabular.Source

func (r memRegistry) Years() []int {
	var ys []int
	for y := range r {
		ys = append(ys, y)
	}
	sort.Ints(ys)
	return ys
}

func (r memRegistry) SourceFor(year int) (tabular.Source, bool) {
	s, ok := r[year]
	return s, ok
}

func intPtr(n int) *int { return &n }

func fold(t *testing.T, data string, q Query) (*Accumulator, Stats) {
	t.Helper()
	acc := NewAccumulator()
	stats, err := Fold(context.Background(), acc, 2019, tabular.Scan(strings.NewReader(data)), q)
	require.NoError(t, err)
	return acc, stats
}

func TestFold_SumsDuplicateRows(t *testing.T) {
	data := `UNITID,CIPCODE,AWLEVEL,CTOTALT
100654,51.2001,7,10
100654,51.2001,7,4
100654,512001,7,1
100663,51.2001,7,3
100654,11.0701,7,99
`
	acc, stats := fold(t, data, Query{Code: "51.2001", AwLevel: intPtr(7)})
	require.Equal(t, 5, stats.Rows)
	require.Equal(t, 4, stats.Matched)

	entries := acc.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "100654", entries[0].UnitID)
	require.Equal(t, map[int]int{2019: 15}, entries[0].Counts(AllLevels))
	require.Equal(t, 15, entries[0].Total())
	require.Equal(t, 3, entries[1].Total())
}

func TestFold_AwardLevelFilter(t *testing.T) {
	data := `UNITID,CIPCODE,AWLEVEL,CTOTALT
1,51.2001,5,10
1,51.2001,7,20
1,51.2001,,30
1,51.2001,x,40
`
	acc, _ := fold(t, data, Query{Code: "51.2001", AwLevel: intPtr(7)})
	require.Equal(t, 20, acc.Entries()[0].Total())

	acc, _ = fold(t, data, Query{Code: "51.2001"})
	require.Equal(t, 100, acc.Entries()[0].Total())
}

func TestFold_GroupByAward(t *testing.T) {
	data := `UNITID,CIPCODE,AWLEVEL,CTOTALT
1,51.2001,7,10
1,51.2001,5,2
1,51.2001,7,1
`
	acc, _ := fold(t, data, Query{Code: "51.2001", GroupByAward: true})
	e := acc.Entries()[0]
	require.Equal(t, []int{7, 5}, e.Groups())
	require.Equal(t, 11, e.GroupTotal(7))
	require.Equal(t, 2, e.GroupTotal(5))
	require.Equal(t, 13, e.Total())
	require.Equal(t, map[int]int{2019: 13}, e.YearTotals())
}

func TestFold_CoercionAndSkips(t *testing.T) {
	data := `unitid,cipcode,awlevel,ctotalt
,51.2001,7,10
2,51.2001,7,abc
3,51.2001,7,-4
4,51.2001,7,0
5,51.2001,7,
`
	acc, stats := fold(t, data, Query{Code: "51.2001"})
	require.Equal(t, 4, stats.Matched)

	totals := map[string]int{}
	for _, e := range acc.Entries() {
		totals[e.UnitID] = e.Total()
	}
	require.Equal(t, map[string]int{"2": 0, "3": -4, "4": 0, "5": 0}, totals)
}

func TestFold_ReadErrorStops(t *testing.T) {
	acc := NewAccumulator()
	data := "UNITID,CIPCODE,AWLEVEL,CTOTALT\n1,51.2001,7,1\n2,51\"x,7,1\n3,51.2001,7,1\n"
	_, err := Fold(context.Background(), acc, 2019, tabular.Scan(strings.NewReader(data)), Query{Code: "51.2001"})
	require.Error(t, err)
}

func TestFold_Cancelled(t *testing.T) {
	var b strings.Builder
	b.WriteString("UNITID,CIPCODE,AWLEVEL,CTOTALT\n")
	for i := 0; i < 3*cancelCheckInterval; i++ {
		b.WriteString("1,51.2001,7,1\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := Fold(ctx, NewAccumulator(), 2019, tabular.Scan(strings.NewReader(b.String())), Query{Code: "51.2001"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, cancelCheckInterval, stats.Rows)
}

func TestAggregate_AcrossYears(t *testing.T) {
	reg := memRegistry{
		2020: memSource{name: "c2020", data: "UNITID,CIPCODE,AWLEVEL,CTOTALT\n200,51.2001,7,2\n100654,51.2001,7,5\n"},
		2019: memSource{name: "c2019", data: "UNITID,CIPCODE,AWLEVEL,CTOTALT\n100654,51.2001,7,10\n"},
		2021: memSource{name: "c2021", data: "CipCode,UnitID,AwLevel,TOTAL\n51.2001,300,7,1\n51.2001,100654,7,3\n"},
	}

	acc, err := New(3, nil).Aggregate(context.Background(), reg, Query{Code: "51.2001", AwLevel: intPtr(7)})
	require.NoError(t, err)

	entries := acc.Entries()
	require.Len(t, entries, 3)
	// Institution order follows ascending years, then row order
	require.Equal(t, "100654", entries[0].UnitID)
	require.Equal(t, "200", entries[1].UnitID)
	require.Equal(t, "300", entries[2].UnitID)

	require.Equal(t, map[int]int{2019: 10, 2020: 5, 2021: 3}, entries[0].Counts(AllLevels))
	require.Equal(t, 18, entries[0].Total())
}

func TestAggregate_OpenFailureFailsQuery(t *testing.T) {
	reg := memRegistry{
		2019: memSource{name: "c2019", data: "UNITID,CIPCODE,AWLEVEL,CTOTALT\n1,51.2001,7,1\n"},
		2020: memSource{name: "c2020", openErr: errors.New("permission denied")},
	}

	acc, err := New(1, nil).Aggregate(context.Background(), reg, Query{Code: "51.2001"})
	require.Nil(t, acc)

	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	require.Equal(t, 2020, scanErr.Year)
	require.Contains(t, err.Error(), "permission denied")
}

func TestAggregate_ParseFailureFailsQuery(t *testing.T) {
	reg := memRegistry{
		2019: memSource{name: "c2019", data: "UNITID,CIPCODE,AWLEVEL,CTOTALT\n1,5\"1,7,1\n"},
	}

	_, err := New(2, nil).Aggregate(context.Background(), reg, Query{Code: "51.2001"})
	var scanErr *ScanError
	require.ErrorAs(t, err, &scanErr)
	require.Equal(t, "c2019", scanErr.Source)
}

func TestAggregate_EachYearOpenedOnce(t *testing.T) {
	var opens atomic.Int32
	reg := memRegistry{
		2019: memSource{name: "a", data: "UNITID,CIPCODE,AWLEVEL,CTOTALT\n", opens: &opens},
		2020: memSource{name: "b", data: "UNITID,CIPCODE,AWLEVEL,CTOTALT\n", opens: &opens},
	}

	acc, err := New(4, nil).Aggregate(context.Background(), reg, Query{Code: "51.2001"})
	require.NoError(t, err)
	require.Equal(t, 0, acc.Len())
	require.Equal(t, int32(2), opens.Load())
}

func TestAggregate_MissingSource(t *testing.T) {
	_, err := New(1, nil).Aggregate(context.Background(), brokenRegistry{}, Query{Code: "51.2001"})
	require.ErrorIs(t, err, ErrNoSource)
}

type brokenRegistry struct{}

func (brokenRegistry) Years() []int { return []int{2019} }
func (brokenRegistry) SourceFor(int) (tabular.Source, bool) { return nil, false }

func TestAccumulator_MergeIsSum(t *testing.T) {
	a := NewAccumulator()
	a.Add("x", AllLevels, 2019, 1)
	b := NewAccumulator()
	b.Add("y", AllLevels, 2019, 2)
	b.Add("x", AllLevels, 2019, 3)
	b.Add("x", AllLevels, 2020, 4)

	a.Merge(b)
	entries := a.Entries()
	require.Equal(t, "x", entries[0].UnitID)
	require.Equal(t, "y", entries[1].UnitID)
	require.Equal(t, map[int]int{2019: 4, 2020: 4}, entries[0].Counts(AllLevels))
}
