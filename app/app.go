package main

import (
	"flag"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	C "anomalydetect/config"
	H "anomalydetect/handler"
	mid "anomalydetect/middleware"
)

// ./app --env=development --port=8080 --db_host=localhost --db_port=5432 --db_user=anomaly --db_name=anomaly --db_pass=anomaly --redis_host=localhost --redis_port=6379 --storage_backend=local --model_dir=./data/models --data_dir=./data/data
func main() {

	env := flag.String("env", C.DEVELOPMENT, "")
	port := flag.Int("port", 8080, "")

	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 5432, "")
	dbUser := flag.String("db_user", "anomaly", "")
	dbName := flag.String("db_name", "anomaly", "")
	dbPass := flag.String("db_pass", "anomaly", "")

	redisHost := flag.String("redis_host", "localhost", "")
	redisPort := flag.Int("redis_port", 6379, "")

	storageBackend := flag.String("storage_backend", C.StorageBackendLocal,
		"Artifact storage backend local|s3|gcs")
	modelDir := flag.String("model_dir", "./data/models", "Model state root for local backend")
	dataDir := flag.String("data_dir", "./data/data", "Training data root for local backend")
	bucketName := flag.String("bucket_name", "", "S3 bucket for model artifacts")
	awsRegion := flag.String("aws_region", "us-east-1", "")
	s3Prefix := flag.String("s3_prefix", "", "Key prefix inside the bucket")
	s3Endpoint := flag.String("s3_endpoint", "", "Endpoint override for S3 compatible stores")
	gcsBucketName := flag.String("gcs_bucket_name", "", "GCS bucket for model artifacts")

	minTrainingPoints := flag.Int("min_training_points", 3,
		"Minimum data points required to train")
	latencyHistoryLimit := flag.Int("latency_history_limit", 100,
		"Latency samples kept per request target")

	flag.Parse()

	config := &C.Configuration{
		Env:  *env,
		Port: *port,
		DBInfo: C.DBConf{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Name:     *dbName,
			Password: *dbPass,
		},
		RedisHost:           *redisHost,
		RedisPort:           *redisPort,
		StorageBackend:      *storageBackend,
		ModelDir:            *modelDir,
		DataDir:             *dataDir,
		BucketName:          *bucketName,
		AWSRegion:           *awsRegion,
		S3Prefix:            *s3Prefix,
		S3Endpoint:          *s3Endpoint,
		GCSBucketName:       *gcsBucketName,
		MinTrainingPoints:   *minTrainingPoints,
		LatencyHistoryLimit: *latencyHistoryLimit,
	}
	C.InitLogging(config)

	// Initialize connections.
	services, err := C.NewServices(config)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize services.")
		return
	}
	defer services.Close()

	if !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Root middleware for cors.
	r.Use(mid.CustomCors(config))
	r.Use(mid.RequestIdGenerator())
	r.Use(mid.Logger())
	r.Use(mid.Recovery())
	r.Use(mid.LatencyRecorder(services))

	// Initialize routes.
	H.InitAppRoutes(r, services)
	r.Run(":" + strconv.Itoa(config.Port))
}
