package s3

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	awsS3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Create and Get against a real bucket need localstack; key resolution
// and error translation are covered without the network.

func TestObjectKeyAndURI(t *testing.T) {
	driver := New("models-bucket", "us-east-1", "", "")
	assert.Equal(t, "s1/s1_model_v1.json", driver.objectKey("s1", "s1_model_v1.json"))
	assert.Equal(t, "s3://models-bucket/s1/s1_model_v1.json",
		driver.toURI(driver.objectKey("s1", "s1_model_v1.json")))

	withPrefix := New("models-bucket", "us-east-1", "/artifacts/", "")
	assert.Equal(t, "artifacts", withPrefix.Prefix)
	assert.Equal(t, "artifacts/s1/s1_data_v2.json",
		withPrefix.objectKey("s1", "s1_data_v2.json"))
}

func TestResolveBucketAndKey(t *testing.T) {
	driver := New("models-bucket", "us-east-1", "", "")

	bucket, key, err := driver.resolveBucketAndKey("s3://other-bucket/prefix/s1/s1_model_v1.json")
	require.Nil(t, err)
	assert.Equal(t, "other-bucket", bucket)
	assert.Equal(t, "prefix/s1/s1_model_v1.json", key)

	// Bare keys fall back to the configured bucket.
	bucket, key, err = driver.resolveBucketAndKey("s1/s1_model_v1.json")
	require.Nil(t, err)
	assert.Equal(t, "models-bucket", bucket)
	assert.Equal(t, "s1/s1_model_v1.json", key)

	bucket, key, err = driver.resolveBucketAndKey("/s1/s1_model_v1.json")
	require.Nil(t, err)
	assert.Equal(t, "models-bucket", bucket)
	assert.Equal(t, "s1/s1_model_v1.json", key)

	_, _, err = driver.resolveBucketAndKey("s3://bucket-only")
	assert.NotNil(t, err)

	_, _, err = driver.resolveBucketAndKey("s3:///missing-bucket/key")
	assert.NotNil(t, err)
}

func TestIsNotFoundErr(t *testing.T) {
	assert.True(t, isNotFoundErr(awserr.New(awsS3.ErrCodeNoSuchKey, "no such key", nil)))
	assert.True(t, isNotFoundErr(awserr.New("NotFound", "not found", nil)))
	assert.True(t, isNotFoundErr(awserr.New("404", "not found", nil)))

	assert.False(t, isNotFoundErr(awserr.New("AccessDenied", "denied", nil)))
	assert.False(t, isNotFoundErr(errors.New("plain error")))
}
