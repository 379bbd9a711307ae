package years

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicktill/ipedscomps/pkg/tabular"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("UNITID\n"), 0o644))
}

func TestFromMapping_SortsYears(t *testing.T) {
	reg := FromMapping(map[int]tabular.Source{
		2021: tabular.FileSource{Path: "c2021_a.csv"},
		2019: tabular.FileSource{Path: "c2019_a.csv"},
		2020: tabular.FileSource{Path: "c2020_a.csv"},
	})

	require.Equal(t, []int{2019, 2020, 2021}, reg.Years())
	require.Equal(t, 3, reg.Len())

	src, ok := reg.SourceFor(2020)
	require.True(t, ok)
	require.Equal(t, "c2020_a.csv", src.Name())

	_, ok = reg.SourceFor(1999)
	require.False(t, ok)
}

func TestYears_ReturnsCopy(t *testing.T) {
	reg := FromMapping(map[int]tabular.Source{2019: tabular.FileSource{}})
	ys := reg.Years()
	ys[0] = 1
	require.Equal(t, []int{2019}, reg.Years())
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "c2022_a.csv")
	touch(t, dir, "C2019_A.CSV")
	touch(t, dir, "c2020_a.csv")
	touch(t, dir, "hd2022.csv")
	touch(t, dir, "c2021_b.csv")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c2018_a.csv"), 0o755))

	reg, err := Discover(dir, "")
	require.NoError(t, err)
	require.Equal(t, []int{2019, 2020, 2022}, reg.Years())

	src, ok := reg.SourceFor(2019)
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "C2019_A.CSV"), src.Name())
}

func TestDiscover_CustomPattern(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "completions-2017.csv")
	touch(t, dir, "completions-2018.csv")

	reg, err := Discover(dir, `^completions-(\d{4})\.csv$`)
	require.NoError(t, err)
	require.Equal(t, []int{2017, 2018}, reg.Years())
}

func TestDiscover_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Discover(dir, `^c\d{4}\.csv$`)
	require.ErrorContains(t, err, "capture group")

	_, err = Discover(dir, `(`)
	require.Error(t, err)

	_, err = Discover(filepath.Join(dir, "missing"), "")
	require.Error(t, err)

	touch(t, dir, "c2019_a.csv")
	touch(t, dir, "x2019_a.csv")
	_, err = Discover(dir, `^[cx](\d{4})_a\.csv$`)
	require.ErrorContains(t, err, "year 2019")
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping("2020=/data/c2020_a.csv, 2019 = /data/c2019_a.csv,")
	require.NoError(t, err)
	require.Len(t, m, 2)
	require.Equal(t, "/data/c2019_a.csv", m[2019].Name())

	_, err = ParseMapping("2019")
	require.Error(t, err)

	_, err = ParseMapping("abcd=/x.csv")
	require.Error(t, err)

	_, err = ParseMapping("2019=a.csv,2019=b.csv")
	require.Error(t, err)
}
