package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	log "github.com/sirupsen/logrus"

	"anomalydetect/filestore"
	"anomalydetect/services/disk"
	"anomalydetect/services/gcstorage"
	serviceS3 "anomalydetect/services/s3"
)

const DEVELOPMENT = "development"

const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
	StorageBackendGCS   = "gcs"
)

type DBConf struct {
	Host     string
	Port     int
	User     string
	Name     string
	Password string
}

// Configuration holds every knob the service reads. Built once in main
// from flags and passed down explicitly; nothing here is package state.
type Configuration struct {
	Env    string
	Port   int
	DBInfo DBConf

	RedisHost string
	RedisPort int

	StorageBackend string
	ModelDir       string
	DataDir        string
	BucketName     string
	AWSRegion      string
	S3Prefix       string
	S3Endpoint     string
	GCSBucketName  string

	MinTrainingPoints   int
	LatencyHistoryLimit int
}

func (c *Configuration) IsDevelopment() bool {
	return c.Env == DEVELOPMENT
}

// Services carries the shared handles the orchestrators need: the
// relational store, the latency cache pool and the artifact store.
type Services struct {
	Config    *Configuration
	Db        *gorm.DB
	Redis     *redis.Pool
	FileStore filestore.FileStore
}

// InitLogging sets the process-wide log format and level for the
// configured environment.
func InitLogging(config *Configuration) {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if config.IsDevelopment() {
		log.SetLevel(log.DebugLevel)
	}
}

// NewServices connects every backing service the configuration names.
// Fails fast on a bad storage backend selector or unreachable database.
func NewServices(config *Configuration) (*Services, error) {
	db, err := gorm.Open("postgres", fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s password=%s sslmode=disable",
		config.DBInfo.Host,
		config.DBInfo.Port,
		config.DBInfo.User,
		config.DBInfo.Name,
		config.DBInfo.Password))
	if err != nil {
		log.WithError(err).Error("Failed Db Initialization")
		return nil, err
	}
	// Connection Pooling and Logging.
	db.DB().SetMaxIdleConns(10)
	db.DB().SetMaxOpenConns(100)
	db.LogMode(config.IsDevelopment())
	log.Info("Db Service initialized")

	redisPool := NewRedisPool(config.RedisHost, config.RedisPort)
	log.Info("Redis pool initialized")

	fileStore, err := NewFileStore(config)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.WithField("backend", config.StorageBackend).Info("File store initialized")

	return &Services{
		Config:    config,
		Db:        db,
		Redis:     redisPool,
		FileStore: fileStore,
	}, nil
}

// NewRedisPool builds the shared redigo pool for the latency cache.
func NewRedisPool(host string, port int) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     50,
		MaxActive:   100,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// NewFileStore picks the artifact storage driver for the configured
// backend. Swapping backends changes only the location encoding, never
// metadata semantics.
func NewFileStore(config *Configuration) (filestore.FileStore, error) {
	switch strings.TrimSpace(config.StorageBackend) {
	case StorageBackendLocal:
		return disk.New(config.ModelDir, config.DataDir), nil
	case StorageBackendS3:
		return serviceS3.New(config.BucketName, config.AWSRegion,
			config.S3Prefix, config.S3Endpoint), nil
	case StorageBackendGCS:
		return gcstorage.New(config.GCSBucketName, config.S3Prefix)
	}

	return nil, fmt.Errorf("unknown storage backend '%s'", config.StorageBackend)
}

// Close releases the shared handles. Safe on partially built services.
func (sv *Services) Close() {
	if sv.Db != nil {
		sv.Db.Close()
	}
	if sv.Redis != nil {
		sv.Redis.Close()
	}
}
