package consolidate

import (
	"path/filepath"
	"testing"

	"github.com/corvid-labs/fuzzysig/internal/catalog"
	"github.com/corvid-labs/fuzzysig/internal/signature"
	"github.com/stretchr/testify/require"
)

func openWorking(t *testing.T) *catalog.SQLiteCatalog {
	t.Helper()
	cat, err := catalog.OpenSQLiteWorking(filepath.Join(t.TempDir(), "working.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func openMaster(t *testing.T) *catalog.SQLiteCatalog {
	t.Helper()
	cat, err := catalog.OpenSQLiteMaster(filepath.Join(t.TempDir(), "master.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func testSignatures(t *testing.T) (sig1, sig2, sig3 string) {
	t.Helper()

	d1 := make([]byte, 200*1024)
	for i := range d1 {
		d1[i] = byte(i*2654435761 + 17)
	}

	d2 := make([]byte, len(d1))
	copy(d2, d1)
	d2[100000] ^= 0xFF

	d3 := make([]byte, 200*1024)
	for i := range d3 {
		d3[i] = byte(i*40503 + 101)
	}

	var ok bool
	sig1, ok = signature.Build(d1)
	require.True(t, ok)
	sig2, ok = signature.Build(d2)
	require.True(t, ok)
	sig3, ok = signature.Build(d3)
	require.True(t, ok)
	return sig1, sig2, sig3
}

func TestClusterFormationAndIsolation(t *testing.T) {
	sig1, sig2, sig3 := testSignatures(t)

	working := openWorking(t)
	require.NoError(t, working.Insert("d1.bin", sig1))
	require.NoError(t, working.Insert("d2.bin", sig2))
	require.NoError(t, working.Insert("d3.bin", sig3))

	master := openMaster(t)

	report, err := Run(working, master, nil, Options{Threshold: 0.8}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report.Clusters)
	require.Equal(t, 1, report.TotalRemoved)
	require.Equal(t, 0, report.Ignored)

	remaining, err := working.Scan()
	require.NoError(t, err)
	require.Len(t, remaining, 2) // d1 (pivot, retained) + d3 (never clustered)

	masterEntries, err := master.Scan()
	require.NoError(t, err)
	require.Len(t, masterEntries, 1)
}

func TestExistingMasterFiltersDuplicates(t *testing.T) {
	sig1, sig2, sig3 := testSignatures(t)

	working := openWorking(t)
	require.NoError(t, working.Insert("d1.bin", sig1))
	require.NoError(t, working.Insert("d2.bin", sig2))
	require.NoError(t, working.Insert("d3.bin", sig3))

	existing := openMaster(t)
	require.NoError(t, existing.InsertOrReplace("known-family.xyz12", sig1))

	master := openMaster(t)

	report, err := Run(working, master, existing, Options{Threshold: 0.8}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, report.Clusters)
	require.GreaterOrEqual(t, report.Ignored, 1)

	remaining, err := working.Scan()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "d3.bin", remaining[0].Key)
}

func TestConsolidationIsStable(t *testing.T) {
	sig1, sig2, sig3 := testSignatures(t)

	working := openWorking(t)
	require.NoError(t, working.Insert("d1.bin", sig1))
	require.NoError(t, working.Insert("d2.bin", sig2))
	require.NoError(t, working.Insert("d3.bin", sig3))

	master := openMaster(t)

	_, err := Run(working, master, nil, Options{Threshold: 0.8}, nil)
	require.NoError(t, err)

	before, err := working.Scan()
	require.NoError(t, err)

	report, err := Run(working, master, nil, Options{Threshold: 0.8}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, report.Clusters)
	require.Equal(t, 0, report.TotalRemoved)

	after, err := working.Scan()
	require.NoError(t, err)
	require.ElementsMatch(t, before, after)
}

func TestAutoNameMode(t *testing.T) {
	name, err := autoName([]string{"a.b.c.exe", "a.b.c.exe", "a.b.d.exe"})
	require.NoError(t, err)
	require.Regexp(t, `^a\.b\.c\.[a-z0-9]{5}$`, name)
}

func TestAutoNameLongDotSegments(t *testing.T) {
	name, err := autoName([]string{"one.two.three.four.five.exe"})
	require.NoError(t, err)
	require.Regexp(t, `^one\.two\.three\.four\.[a-z0-9]{5}$`, name)
}
