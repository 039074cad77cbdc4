package sdk

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	C "anomalydetect/config"
	"anomalydetect/filestore"
	"anomalydetect/model"
	"anomalydetect/model/store"
	"anomalydetect/services/disk"
	U "anomalydetect/util"
)

var testServices *C.Services

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "anomalydetect_sdk_test")
	if err != nil {
		fmt.Println("Failed to create temp dir.", err)
		os.Exit(1)
	}

	source := filepath.Join(dir, "test.db") + "?_busy_timeout=10000&_txlock=immediate"
	db, err := gorm.Open("sqlite3", source)
	if err != nil {
		fmt.Println("Failed to open test db.", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(&model.SeriesVersion{}, &model.AnomalyModel{}).Error; err != nil {
		fmt.Println("Failed to migrate test db.", err)
		os.Exit(1)
	}

	testServices = &C.Services{
		Config: &C.Configuration{
			Env:                 "development",
			StorageBackend:      C.StorageBackendLocal,
			MinTrainingPoints:   3,
			LatencyHistoryLimit: 100,
		},
		Db: db,
		FileStore: disk.New(filepath.Join(dir, "models"),
			filepath.Join(dir, "data")),
	}

	code := m.Run()

	db.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func validTrainPayload() *TrainPayload {
	return &TrainPayload{
		Timestamps: []int64{1700000000, 1700000001, 1700000002},
		Values:     []float64{1.0, 1.1, 0.9},
	}
}

func TestParseVersion(t *testing.T) {
	for raw, want := range map[string]uint64{
		"":     0,
		"  ":   0,
		"0":    0,
		"1":    1,
		"v1":   1,
		"V3":   3,
		" v2 ": 2,
	} {
		version, err := ParseVersion(raw)
		require.Nil(t, err, raw)
		assert.Equal(t, want, version, raw)
	}

	for _, raw := range []string{"v", "latest", "-", "v-"} {
		_, err := ParseVersion(raw)
		assert.NotNil(t, err, raw)
	}
}

func TestTrainThenPredictScenario(t *testing.T) {
	status, resp := Train(testServices, "s1", validTrainPayload())
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, "s1", resp.SeriesID)
	assert.Equal(t, "1", resp.Version)
	assert.Equal(t, 3, resp.PointsUsed)

	// Latest resolution reports the resolved version, not the input 0.
	status, predictResp := Predict(testServices, "s1", VersionLatest,
		&PredictPayload{Timestamp: "1700000100", Value: 100.0})
	require.Equal(t, http.StatusOK, status, predictResp.Error)
	assert.True(t, predictResp.Anomaly)
	assert.Equal(t, "1", predictResp.ModelVersion)

	status, predictResp = Predict(testServices, "s1", VersionLatest,
		&PredictPayload{Timestamp: "1700000100", Value: 1.05})
	require.Equal(t, http.StatusOK, status)
	assert.False(t, predictResp.Anomaly)

	// Explicit version works the same way.
	status, predictResp = Predict(testServices, "s1", 1,
		&PredictPayload{Timestamp: "1700000100", Value: 100.0})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1", predictResp.ModelVersion)
}

func TestTrainValidation(t *testing.T) {
	seriesID := U.RandomLowerAphaNumString(8)

	// One fewer than the configured minimum.
	status, resp := Train(testServices, seriesID, &TrainPayload{
		Timestamps: []int64{1700000000, 1700000001},
		Values:     []float64{1.0, 1.1},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.NotEmpty(t, resp.Error)

	// All-constant values.
	status, _ = Train(testServices, seriesID, &TrainPayload{
		Timestamps: []int64{1700000000, 1700000001, 1700000002},
		Values:     []float64{5.0, 5.0, 5.0},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Non-increasing timestamps.
	status, _ = Train(testServices, seriesID, &TrainPayload{
		Timestamps: []int64{1700000002, 1700000001, 1700000000},
		Values:     []float64{1.0, 1.1, 0.9},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Parallel arrays of different length.
	status, _ = Train(testServices, seriesID, &TrainPayload{
		Timestamps: []int64{1700000000, 1700000001, 1700000002},
		Values:     []float64{1.0, 1.1},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = Train(testServices, seriesID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Exactly the minimum with non-constant values passes.
	status, resp = Train(testServices, seriesID, validTrainPayload())
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, "1", resp.Version)
}

func TestTrainInvalidSeriesID(t *testing.T) {
	for _, seriesID := range []string{" ", "bad id", "a..b"} {
		status, resp := Train(testServices, seriesID, validTrainPayload())
		assert.Equal(t, http.StatusBadRequest, status, seriesID)
		assert.NotEmpty(t, resp.Error)
	}
}

func TestTrainAssignsConsecutiveVersions(t *testing.T) {
	seriesID := U.RandomLowerAphaNumString(8)

	for want := 1; want <= 3; want++ {
		status, resp := Train(testServices, seriesID, validTrainPayload())
		require.Equal(t, http.StatusOK, status, resp.Error)
		assert.Equal(t, fmt.Sprintf("%d", want), resp.Version)
	}
}

// Two concurrent trains on a brand-new series must come out as versions
// 1 and 2, with no duplicate rows and no error.
func TestTrainConcurrentSameSeries(t *testing.T) {
	seriesID := U.RandomLowerAphaNumString(8)

	var wg sync.WaitGroup
	versions := make(chan string, 2)
	failures := make(chan string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, resp := Train(testServices, seriesID, validTrainPayload())
			if status != http.StatusOK {
				failures <- resp.Error
				return
			}
			versions <- resp.Version
		}()
	}
	wg.Wait()
	close(versions)
	close(failures)

	for message := range failures {
		t.Fatalf("concurrent train failed: %s", message)
	}

	assigned := make([]string, 0, 2)
	for version := range versions {
		assigned = append(assigned, version)
	}
	sort.Strings(assigned)
	assert.Equal(t, []string{"1", "2"}, assigned)

	var count int
	require.Nil(t, testServices.Db.Model(&model.AnomalyModel{}).
		Where("series_id = ?", seriesID).Count(&count).Error)
	assert.Equal(t, 2, count)
}

func TestPredictWithoutTrainedModel(t *testing.T) {
	status, resp := Predict(testServices, U.RandomLowerAphaNumString(8), VersionLatest,
		&PredictPayload{Timestamp: "1700000100", Value: 1.0})
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, resp.Error)

	seriesID := U.RandomLowerAphaNumString(8)
	trainStatus, trainResp := Train(testServices, seriesID, validTrainPayload())
	require.Equal(t, http.StatusOK, trainStatus, trainResp.Error)

	status, _ = Predict(testServices, seriesID, 9,
		&PredictPayload{Timestamp: "1700000100", Value: 1.0})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPredictValidation(t *testing.T) {
	status, _ := Predict(testServices, "s1", VersionLatest, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = Predict(testServices, "s1", VersionLatest,
		&PredictPayload{Timestamp: "", Value: 1.0})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = Predict(testServices, "s1", VersionLatest,
		&PredictPayload{Timestamp: "not-a-number", Value: 1.0})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = Predict(testServices, "s1", VersionLatest,
		&PredictPayload{Timestamp: "-5", Value: 1.0})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = Predict(testServices, "bad id", VersionLatest,
		&PredictPayload{Timestamp: "1700000100", Value: 1.0})
	assert.Equal(t, http.StatusBadRequest, status)
}

// A committed row with null paths is an inconsistent-state signal, not a
// client error and not a crash.
func TestPredictModelPathMissing(t *testing.T) {
	seriesID := U.RandomLowerAphaNumString(8)
	record := store.BuildAnomalyModel(seriesID, 1, nil, nil)
	require.Nil(t, testServices.Db.Create(record).Error)

	status, resp := Predict(testServices, seriesID, 1,
		&PredictPayload{Timestamp: "1700000100", Value: 1.0})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Model path missing on trained model record.", resp.Error)
}

// Metadata row points at an artifact that was deleted out-of-band.
func TestPredictArtifactDeletedOutOfBand(t *testing.T) {
	seriesID := U.RandomLowerAphaNumString(8)
	trainStatus, trainResp := Train(testServices, seriesID, validTrainPayload())
	require.Equal(t, http.StatusOK, trainStatus, trainResp.Error)

	record, err := store.GetLastAnomalyModel(testServices.Db, seriesID)
	require.Nil(t, err)
	require.NotNil(t, record.ModelPath)
	require.Nil(t, os.Remove(*record.ModelPath))

	status, resp := Predict(testServices, seriesID, VersionLatest,
		&PredictPayload{Timestamp: "1700000100", Value: 1.0})
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, resp.Error)
}

// failingFileStore breaks after the model state write so the data write
// fails mid-protocol.
type failingFileStore struct {
	filestore.FileStore
}

func (ffs *failingFileStore) SaveData(seriesID string, version uint64, payload *model.TimeSeries) (string, error) {
	return "", errors.New("storage write failed")
}

// A failed artifact write rolls back the whole transaction: no
// placeholder row survives and the next train reuses the version.
func TestTrainRollbackOnArtifactWriteFailure(t *testing.T) {
	seriesID := U.RandomLowerAphaNumString(8)
	broken := &C.Services{
		Config:    testServices.Config,
		Db:        testServices.Db,
		FileStore: &failingFileStore{testServices.FileStore},
	}

	status, resp := Train(broken, seriesID, validTrainPayload())
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, resp.Error)

	_, err := store.GetLastAnomalyModel(testServices.Db, seriesID)
	assert.True(t, gorm.IsRecordNotFoundError(err))

	status, resp = Train(testServices, seriesID, validTrainPayload())
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, "1", resp.Version)
}

func TestPlotTrainingData(t *testing.T) {
	seriesID := U.RandomLowerAphaNumString(8)
	trainStatus, trainResp := Train(testServices, seriesID, validTrainPayload())
	require.Equal(t, http.StatusOK, trainStatus, trainResp.Error)

	status, resp := Plot(testServices, seriesID, VersionLatest)
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Equal(t, "1", resp.Version)
	assert.Equal(t, fmt.Sprintf("Training data for %s (v1)", seriesID), resp.Title)
	assert.NotEmpty(t, resp.ChartURL)

	status, _ = Plot(testServices, U.RandomLowerAphaNumString(8), VersionLatest)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthcheckLatencyCacheUnreachable(t *testing.T) {
	services := &C.Services{
		Config:    testServices.Config,
		Db:        testServices.Db,
		Redis:     C.NewRedisPool("127.0.0.1", 1),
		FileStore: testServices.FileStore,
	}
	defer services.Redis.Close()

	status, resp := Healthcheck(services)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.NotEmpty(t, resp.Error)
}
