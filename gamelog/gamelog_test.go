package gamelog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federicomassa/ilqgames/gamelog"
	"github.com/federicomassa/ilqgames/strategy"
)

func TestLogAppendIsOrdered(t *testing.T) {
	var l gamelog.Log
	op0 := strategy.NewOperatingPoint(1, 1, []int{1}, 0)
	op1 := strategy.NewOperatingPoint(1, 1, []int{1}, 0)
	l.Append(gamelog.Entry{OperatingPoint: op0, TotalCost: []float64{1}})
	l.Append(gamelog.Entry{OperatingPoint: op1, TotalCost: []float64{2}})
	require.Len(t, l.Entries, 2)
	assert.Equal(t, 1.0, l.Entries[0].TotalCost[0])
	assert.Equal(t, 2.0, l.Entries[1].TotalCost[0])
}

func TestLogSaveWritesExpectedFiles(t *testing.T) {
	dir := t.TempDir()
	var l gamelog.Log
	op := strategy.NewOperatingPoint(2, 2, []int{1}, 0)
	op.X0[0].SetVec(0, 1)
	op.X0[0].SetVec(1, 2)
	op.X0[1].SetVec(0, 3)
	op.X0[1].SetVec(1, 4)
	l.Append(gamelog.Entry{OperatingPoint: op, TotalCost: []float64{0.5}})

	require.NoError(t, l.Save(dir))

	xsPath := filepath.Join(dir, "00", "xs.txt")
	costsPath := filepath.Join(dir, "00", "costs.txt")
	_, err := os.Stat(xsPath)
	require.NoError(t, err)
	_, err = os.Stat(costsPath)
	require.NoError(t, err)

	xsContent, err := os.ReadFile(xsPath)
	require.NoError(t, err)
	assert.Contains(t, string(xsContent), "1 2")
	assert.Contains(t, string(xsContent), "3 4")

	costsContent, err := os.ReadFile(costsPath)
	require.NoError(t, err)
	assert.Equal(t, "0.5\n", string(costsContent))
}
