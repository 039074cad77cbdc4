package gcstorage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"

	"anomalydetect/filestore"
	"anomalydetect/model"
)

const separator = "/"

var _ filestore.FileStore = (*GCSDriver)(nil)

// GCSDriver stores artifacts as JSON objects under
// {prefix}/{series_id}/{filename} and records canonical gs://bucket/key
// URIs in metadata.
type GCSDriver struct {
	client     *storage.Client
	BucketName string
	Prefix     string
}

func New(bucketName, prefix string) (*GCSDriver, error) {
	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	return &GCSDriver{
		client:     client,
		BucketName: bucketName,
		Prefix:     strings.Trim(strings.TrimSpace(prefix), separator),
	}, nil
}

func (gcsd *GCSDriver) SaveState(seriesID string, version uint64, state *model.ModelState) (string, error) {
	return gcsd.put(gcsd.objectKey(seriesID, filestore.ModelFileName(seriesID, version)), state)
}

func (gcsd *GCSDriver) SaveData(seriesID string, version uint64, payload *model.TimeSeries) (string, error) {
	return gcsd.put(gcsd.objectKey(seriesID, filestore.DataFileName(seriesID, version)), payload)
}

func (gcsd *GCSDriver) LoadState(path string) (*model.ModelState, error) {
	var state model.ModelState
	if err := gcsd.getJSON(path, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (gcsd *GCSDriver) LoadData(path string) (*model.TimeSeries, error) {
	var payload model.TimeSeries
	if err := gcsd.getJSON(path, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (gcsd *GCSDriver) objectKey(seriesID, fileName string) string {
	key := seriesID + separator + fileName
	if gcsd.Prefix == "" {
		return key
	}
	return gcsd.Prefix + separator + key
}

func (gcsd *GCSDriver) toURI(key string) string {
	return fmt.Sprintf("gs://%s/%s", gcsd.BucketName, key)
}

// resolveBucketAndKey accepts either a full gs://bucket/key URI or a bare
// key in the configured bucket. URIs split bucket and key on the first
// slash after the scheme.
func (gcsd *GCSDriver) resolveBucketAndKey(path string) (string, string, error) {
	value := strings.TrimSpace(path)
	if !strings.HasPrefix(value, "gs://") {
		return gcsd.BucketName, strings.TrimLeft(value, separator), nil
	}

	withoutScheme := strings.TrimPrefix(value, "gs://")
	parts := strings.SplitN(withoutScheme, separator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid gcs uri '%s'", path)
	}
	return parts[0], parts[1], nil
}

func (gcsd *GCSDriver) put(key string, payload interface{}) (string, error) {
	ctx := context.Background()
	obj := gcsd.client.Bucket(gcsd.BucketName).Object(key)

	w := obj.NewWriter(ctx)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		log.WithFields(log.Fields{
			"Bucket": gcsd.BucketName,
			"Key":    key,
		}).WithError(err).Error("Failed to put object to gcs.")
		return "", err
	}

	return gcsd.toURI(key), nil
}

func (gcsd *GCSDriver) getJSON(path string, out interface{}) error {
	bucket, key, err := gcsd.resolveBucketAndKey(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rc, err := gcsd.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return filestore.ErrNotFound
		}
		log.WithFields(log.Fields{
			"Bucket": bucket,
			"Key":    key,
		}).WithError(err).Error("Failed to get object from gcs.")
		return err
	}
	defer rc.Close()

	return json.NewDecoder(rc).Decode(out)
}
