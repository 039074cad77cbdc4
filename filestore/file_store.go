package filestore

import (
	"errors"
	"fmt"

	"anomalydetect/model"
)

// ErrNotFound is returned when a requested artifact does not exist in the
// backing store. Every backend translates its own missing-object signal
// into this error.
var ErrNotFound = errors.New("artifact not found")

// FileStore persists and retrieves the two artifact kinds a trained model
// produces. Save operations return the location to record in metadata;
// loads accept exactly what a save returned.
type FileStore interface {
	SaveState(seriesID string, version uint64, state *model.ModelState) (string, error)
	SaveData(seriesID string, version uint64, payload *model.TimeSeries) (string, error)
	LoadState(path string) (*model.ModelState, error)
	LoadData(path string) (*model.TimeSeries, error)
}

// ModelFileName is the canonical artifact filename for a model state.
// Shared by all backends so swapping backends only changes the location
// encoding, never the naming.
func ModelFileName(seriesID string, version uint64) string {
	return fmt.Sprintf("%s_model_v%d.json", seriesID, version)
}

// DataFileName is the canonical artifact filename for training data.
func DataFileName(seriesID string, version uint64) string {
	return fmt.Sprintf("%s_data_v%d.json", seriesID, version)
}
