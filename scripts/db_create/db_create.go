package main

// Development-only table creation.
// go run db_create.go --env=development --db_host=localhost --db_port=5432 --db_user=anomaly --db_name=anomaly --db_pass=anomaly

import (
	"flag"
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	log "github.com/sirupsen/logrus"

	C "anomalydetect/config"
	M "anomalydetect/model"
)

func main() {
	env := flag.String("env", C.DEVELOPMENT, "")
	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 5432, "")
	dbUser := flag.String("db_user", "anomaly", "")
	dbName := flag.String("db_name", "anomaly", "")
	dbPass := flag.String("db_pass", "anomaly", "")
	flag.Parse()

	if *env != C.DEVELOPMENT {
		log.Error("Not Development Environment. Aborting")
		return
	}

	db, err := gorm.Open("postgres", fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s password=%s sslmode=disable",
		*dbHost, *dbPort, *dbUser, *dbName, *dbPass))
	if err != nil {
		log.WithError(err).Error("Failed to connect to db.")
		return
	}
	defer db.Close()

	// Create series_versions table.
	if err := db.CreateTable(&M.SeriesVersion{}).Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("series_versions table creation failed.")
	} else {
		log.Info("Created series_versions table.")
	}

	// Create anomaly_detection_models table.
	if err := db.CreateTable(&M.AnomalyModel{}).Error; err != nil {
		log.WithFields(log.Fields{"err": err}).Error("anomaly_detection_models table creation failed.")
	} else {
		log.Info("Created anomaly_detection_models table.")
	}
}
