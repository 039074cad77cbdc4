package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomalydetect/filestore"
	"anomalydetect/model"
)

var testDriver *DiskDriver
var testModelDir string
var testDataDir string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "anomalydetect_disk_test")
	if err != nil {
		os.Exit(1)
	}

	testModelDir = filepath.Join(dir, "models")
	testDataDir = filepath.Join(dir, "data")
	testDriver = New(testModelDir, testDataDir)

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func TestDiskDriverStateRoundTrip(t *testing.T) {
	state := &model.ModelState{
		Model:      "anomaly_detection_model",
		Parameters: map[string]float64{"mean": 1.0, "std": 0.0816},
	}

	path, err := testDriver.SaveState("s1", 1, state)
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(testModelDir, "s1", "s1_model_v1.json"), path)

	loaded, err := testDriver.LoadState(path)
	require.Nil(t, err)
	assert.Equal(t, state, loaded)

	// Metrics stay nil through the round trip when absent.
	assert.Nil(t, loaded.Metrics)
}

func TestDiskDriverStateRoundTripWithMetrics(t *testing.T) {
	state := &model.ModelState{
		Model:      "anomaly_detection_model",
		Parameters: map[string]float64{"mean": -3.5, "std": 12.25, "extra": 0},
		Metrics:    map[string]float64{"points_used": 3},
	}

	path, err := testDriver.SaveState("s2", 4, state)
	require.Nil(t, err)

	loaded, err := testDriver.LoadState(path)
	require.Nil(t, err)
	assert.Equal(t, state, loaded)
}

func TestDiskDriverDataRoundTrip(t *testing.T) {
	payload := &model.TimeSeries{Data: []model.DataPoint{
		{Timestamp: 1700000000, Value: 1.0},
		{Timestamp: 1700000001, Value: 1.1},
		{Timestamp: 1700000002, Value: 0.9},
	}}

	path, err := testDriver.SaveData("s1", 1, payload)
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(testDataDir, "s1", "s1_data_v1.json"), path)

	loaded, err := testDriver.LoadData(path)
	require.Nil(t, err)
	assert.Equal(t, payload, loaded)
}

func TestDiskDriverLoadMissingFile(t *testing.T) {
	_, err := testDriver.LoadState(filepath.Join(testModelDir, "nope", "nope_model_v1.json"))
	assert.Equal(t, filestore.ErrNotFound, err)

	_, err = testDriver.LoadData(filepath.Join(testDataDir, "nope", "nope_data_v1.json"))
	assert.Equal(t, filestore.ErrNotFound, err)
}

func TestDiskDriverOverwritesExistingVersion(t *testing.T) {
	state := &model.ModelState{Model: "anomaly_detection_model", Parameters: map[string]float64{"mean": 1}}

	first, err := testDriver.SaveState("s3", 1, state)
	require.Nil(t, err)

	state.Parameters["mean"] = 2
	second, err := testDriver.SaveState("s3", 1, state)
	require.Nil(t, err)
	assert.Equal(t, first, second)

	loaded, err := testDriver.LoadState(second)
	require.Nil(t, err)
	assert.Equal(t, 2.0, loaded.Parameters["mean"])
}
