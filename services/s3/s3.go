package s3

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	log "github.com/sirupsen/logrus"

	"anomalydetect/filestore"
	"anomalydetect/model"
)

const separator = "/"

var _ filestore.FileStore = (*S3Driver)(nil)

// S3Driver stores artifacts as JSON objects under
// {prefix}/{series_id}/{filename} and records canonical s3://bucket/key
// URIs in metadata.
type S3Driver struct {
	s3         *s3.S3
	BucketName string
	Region     string
	Prefix     string
}

// New builds a driver for the given bucket. endpoint overrides the AWS
// endpoint for S3-compatible stores and switches to path-style addressing.
func New(bucketName, region, prefix, endpoint string) *S3Driver {
	config := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		config = config.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}

	session := session.New()
	return &S3Driver{
		s3:         s3.New(session, config),
		BucketName: bucketName,
		Region:     region,
		Prefix:     normalizePrefix(prefix),
	}
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), separator)
}

func (sd *S3Driver) SaveState(seriesID string, version uint64, state *model.ModelState) (string, error) {
	return sd.put(sd.objectKey(seriesID, filestore.ModelFileName(seriesID, version)), state)
}

func (sd *S3Driver) SaveData(seriesID string, version uint64, payload *model.TimeSeries) (string, error) {
	return sd.put(sd.objectKey(seriesID, filestore.DataFileName(seriesID, version)), payload)
}

func (sd *S3Driver) LoadState(path string) (*model.ModelState, error) {
	var state model.ModelState
	if err := sd.getJSON(path, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (sd *S3Driver) LoadData(path string) (*model.TimeSeries, error) {
	var payload model.TimeSeries
	if err := sd.getJSON(path, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (sd *S3Driver) objectKey(seriesID, fileName string) string {
	key := seriesID + separator + fileName
	if sd.Prefix == "" {
		return key
	}
	return sd.Prefix + separator + key
}

func (sd *S3Driver) toURI(key string) string {
	return fmt.Sprintf("s3://%s/%s", sd.BucketName, key)
}

// resolveBucketAndKey accepts either a full s3://bucket/key URI or a bare
// key in the configured bucket. URIs split bucket and key on the first
// slash after the scheme.
func (sd *S3Driver) resolveBucketAndKey(path string) (string, string, error) {
	value := strings.TrimSpace(path)
	if !strings.HasPrefix(value, "s3://") {
		return sd.BucketName, strings.TrimLeft(value, separator), nil
	}

	withoutScheme := strings.TrimPrefix(value, "s3://")
	parts := strings.SplitN(withoutScheme, separator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid s3 uri '%s'", path)
	}
	return parts[0], parts[1], nil
}

func isNotFoundErr(err error) bool {
	awsErr, ok := err.(awserr.Error)
	if !ok {
		return false
	}

	switch awsErr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound", "404":
		return true
	}
	return false
}

func (sd *S3Driver) put(key string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(sd.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}
	if _, err := sd.s3.PutObject(input); err != nil {
		log.WithFields(log.Fields{
			"Bucket": sd.BucketName,
			"Key":    key,
		}).WithError(err).Error("Failed to put object to s3.")
		return "", err
	}

	return sd.toURI(key), nil
}

func (sd *S3Driver) getJSON(path string, out interface{}) error {
	bucket, key, err := sd.resolveBucketAndKey(path)
	if err != nil {
		return err
	}

	input := s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	op, err := sd.s3.GetObject(&input)
	if err != nil {
		if isNotFoundErr(err) {
			return filestore.ErrNotFound
		}
		log.WithFields(log.Fields{
			"Bucket": bucket,
			"Key":    key,
		}).WithError(err).Error("Failed to get object from s3.")
		return err
	}
	defer op.Body.Close()

	return json.NewDecoder(op.Body).Decode(out)
}
