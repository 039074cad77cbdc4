package model

import "time"

// AnomalyModel is one trained model snapshot for a series, keyed by
// (series_id, version). ModelPath and DataPath stay NULL until the
// artifacts are written, then both are set together and never change.
type AnomalyModel struct {
	SeriesID  string    `gorm:"primary_key" json:"series_id"`
	Version   uint64    `gorm:"primary_key;auto_increment:false" json:"version"`
	ModelPath *string   `json:"model_path"`
	DataPath  *string   `json:"data_path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AnomalyModel) TableName() string {
	return "anomaly_detection_models"
}

// SeriesVersion is the per-series monotonic version counter backing
// version allocation. Exactly one row per series; last_version only
// moves forward.
type SeriesVersion struct {
	SeriesID    string `gorm:"primary_key" json:"series_id"`
	LastVersion uint64 `gorm:"not null" json:"last_version"`
}

func (SeriesVersion) TableName() string {
	return "series_versions"
}
