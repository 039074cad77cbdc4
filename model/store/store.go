package store

import (
	"errors"
	"strings"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	"anomalydetect/model"
	U "anomalydetect/util"
)

// ErrUnattachedRecord flags a write attempted without a live transaction
// handle. Programmer error, not a data error.
var ErrUnattachedRecord = errors.New("record is not attached to an active transaction")

const nextVersionStmt = "INSERT INTO series_versions (series_id, last_version) VALUES (?, 1) " +
	"ON CONFLICT (series_id) DO UPDATE SET last_version = series_versions.last_version + 1 " +
	"RETURNING last_version"

// NextVersion advances the per-series counter and returns the new value in
// one statement. Safe under concurrent callers for the same series: the
// upsert leaves no read-then-write window, so versions come out distinct
// and consecutive regardless of interleaving.
func NextVersion(tx *gorm.DB, seriesID string) (uint64, error) {
	if tx == nil {
		return 0, ErrUnattachedRecord
	}

	var lastVersion uint64
	row := tx.Raw(nextVersionStmt, seriesID).Row()
	if err := row.Scan(&lastVersion); err != nil {
		log.WithFields(log.Fields{"series_id": seriesID}).WithError(err).
			Error("Failed to allocate next version for series.")
		return 0, err
	}

	return lastVersion, nil
}

// BuildAnomalyModel constructs an in-memory record stamped with the
// current UTC time. Version 0 means not assigned yet. No I/O here.
func BuildAnomalyModel(seriesID string, version uint64, modelPath, dataPath *string) *model.AnomalyModel {
	now := U.TimeNowZ()
	return &model.AnomalyModel{
		SeriesID:  seriesID,
		Version:   version,
		ModelPath: modelPath,
		DataPath:  dataPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SaveAnomalyModel persists the record on the given transaction. A zero
// version is assigned from the allocator first; a pre-set version is kept
// as-is. Returns the resolved version. Not idempotent: saving the same
// zero-version record twice allocates twice.
func SaveAnomalyModel(tx *gorm.DB, record *model.AnomalyModel) (uint64, error) {
	if tx == nil {
		return 0, ErrUnattachedRecord
	}

	logCtx := log.WithFields(log.Fields{"series_id": record.SeriesID})

	if record.Version == 0 {
		version, err := NextVersion(tx, record.SeriesID)
		if err != nil {
			return 0, err
		}
		record.Version = version
	}

	if err := tx.Create(record).Error; err != nil {
		logCtx.WithField("version", record.Version).WithError(err).
			Error("Failed to create anomaly model record.")
		return 0, err
	}

	return record.Version, nil
}

// UpdateAnomalyModelPaths attaches both artifact paths to the saved row
// and refreshes updated_at. Both paths are set together; they are never
// changed again after this.
func UpdateAnomalyModelPaths(tx *gorm.DB, record *model.AnomalyModel, modelPath, dataPath string) error {
	if tx == nil {
		return ErrUnattachedRecord
	}

	updatedAt := U.TimeNowZ()
	db := tx.Model(&model.AnomalyModel{}).
		Where("series_id = ? AND version = ?", record.SeriesID, record.Version).
		Updates(map[string]interface{}{
			"model_path": modelPath,
			"data_path":  dataPath,
			"updated_at": updatedAt,
		})
	if db.Error != nil {
		log.WithFields(log.Fields{"series_id": record.SeriesID, "version": record.Version}).
			WithError(db.Error).Error("Failed to update anomaly model paths.")
		return db.Error
	}
	if db.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	record.ModelPath = &modelPath
	record.DataPath = &dataPath
	record.UpdatedAt = updatedAt
	return nil
}

// GetLastAnomalyModel returns the row with the highest version for the
// series. Callers should check gorm.IsRecordNotFoundError on failure.
func GetLastAnomalyModel(db *gorm.DB, seriesID string) (*model.AnomalyModel, error) {
	var record model.AnomalyModel
	err := db.Where("series_id = ?", seriesID).
		Order("version desc").First(&record).Error
	if err != nil {
		if !gorm.IsRecordNotFoundError(err) {
			log.WithFields(log.Fields{"series_id": seriesID}).WithError(err).
				Error("Failed to get last anomaly model.")
		}
		return nil, err
	}

	return &record, nil
}

// GetAnomalyModelVersion returns the exact (series_id, version) row.
func GetAnomalyModelVersion(db *gorm.DB, seriesID string, version uint64) (*model.AnomalyModel, error) {
	var record model.AnomalyModel
	err := db.Where("series_id = ? AND version = ?", seriesID, version).
		First(&record).Error
	if err != nil {
		if !gorm.IsRecordNotFoundError(err) {
			log.WithFields(log.Fields{"series_id": seriesID, "version": version}).
				WithError(err).Error("Failed to get anomaly model version.")
		}
		return nil, err
	}

	return &record, nil
}

// CountSeries returns the number of distinct series with at least one
// trained model. Used by health reporting.
func CountSeries(db *gorm.DB) (uint64, error) {
	var count uint64
	err := db.Model(&model.AnomalyModel{}).
		Select("count(distinct(series_id))").Row().Scan(&count)
	if err != nil {
		log.WithError(err).Error("Failed to count trained series.")
		return 0, err
	}

	return count, nil
}

// IsTransientConflict reports serialization failures the caller may retry
// by re-running the whole transaction.
func IsTransientConflict(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "database is locked")
}

// IsUnavailable reports connection-level failures, e.g. an exhausted pool
// or an unreachable database.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "too many clients") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "sql: database is closed")
}
