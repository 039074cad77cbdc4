package disk

import (
	"encoding/json"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"anomalydetect/filestore"
	"anomalydetect/model"
)

var _ filestore.FileStore = (*DiskDriver)(nil)

// DiskDriver writes artifacts under two local roots, one for model states
// and one for training data, with a subfolder per series.
type DiskDriver struct {
	modelDir string
	dataDir  string
}

func New(modelDir, dataDir string) *DiskDriver {
	return &DiskDriver{modelDir: modelDir, dataDir: dataDir}
}

func MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func (dd *DiskDriver) SaveState(seriesID string, version uint64, state *model.ModelState) (string, error) {
	return dd.create(dd.modelDir, seriesID, filestore.ModelFileName(seriesID, version), state)
}

func (dd *DiskDriver) SaveData(seriesID string, version uint64, payload *model.TimeSeries) (string, error) {
	return dd.create(dd.dataDir, seriesID, filestore.DataFileName(seriesID, version), payload)
}

func (dd *DiskDriver) LoadState(path string) (*model.ModelState, error) {
	var state model.ModelState
	if err := dd.load(path, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (dd *DiskDriver) LoadData(path string) (*model.TimeSeries, error) {
	var payload model.TimeSeries
	if err := dd.load(path, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (dd *DiskDriver) create(baseDir, seriesID, fileName string, payload interface{}) (string, error) {
	dir := filepath.Join(baseDir, seriesID)
	if err := MkdirAll(dir); err != nil {
		log.WithError(err).Errorln("Failed to create dir")
		return "", err
	}

	path := filepath.Join(dir, fileName)
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(payload); err != nil {
		return "", err
	}
	return path, nil
}

// load opens a file in read only mode and decodes it as JSON. A missing
// file maps to filestore.ErrNotFound.
func (dd *DiskDriver) load(path string, out interface{}) error {
	log.WithFields(log.Fields{
		"Path": path,
	}).Debug("DiskDriver opening file")

	file, err := os.OpenFile(path, os.O_RDONLY, 0444)
	if err != nil {
		if os.IsNotExist(err) {
			return filestore.ErrNotFound
		}
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(out)
}
