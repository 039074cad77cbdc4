package sdk

import (
	"net/http"
	"strconv"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	C "anomalydetect/config"
	"anomalydetect/detection"
	"anomalydetect/filestore"
	"anomalydetect/model"
	"anomalydetect/model/store"
)

// Predict resolves the requested model version (0 means latest), loads
// its state from storage and runs inference on one point. ModelVersion
// in the response is the version actually used.
func Predict(sv *C.Services, seriesID string, version uint64, payload *PredictPayload) (int, *PredictResponse) {
	logCtx := log.WithFields(log.Fields{"series_id": seriesID, "version": version})

	status, resp, err := predict(sv, seriesID, version, payload)
	if err != nil {
		logCtx.WithError(err).Error("Failed to predict.")
	}

	return status, resp
}

func predict(sv *C.Services, seriesID string, version uint64, payload *PredictPayload) (int, *PredictResponse, error) {
	point, err := payload.toDataPoint()
	if err != nil {
		serr := model.NewValidationError(err.Error(), nil)
		return serr.Status, &PredictResponse{Error: serr.Message}, nil
	}

	if err := model.ValidateSeriesID(seriesID); err != nil {
		serr := model.NewConflictError(err.Error())
		return serr.Status, &PredictResponse{Error: serr.Message}, nil
	}

	record, serr := resolveModelRecord(sv.Db, seriesID, version)
	if serr != nil {
		return serr.Status, &PredictResponse{Error: serr.Message}, serr.Err
	}

	if record.ModelPath == nil {
		// Should be impossible when the training protocol holds. A row
		// like this means the store was modified out-of-band.
		serr := model.NewInternalError("Model path missing on trained model record.", nil)
		return serr.Status, &PredictResponse{Error: serr.Message}, serr
	}

	state, err := sv.FileStore.LoadState(*record.ModelPath)
	if err != nil {
		if err == filestore.ErrNotFound {
			// Metadata exists but the artifact is gone: deleted
			// out-of-band, distinct from "never trained".
			serr := model.NewNotFoundError("Model artifact not found in storage.", err)
			return serr.Status, &PredictResponse{Error: serr.Message}, serr
		}
		serr := model.NewInternalError("Unexpected error while loading model.", err)
		return serr.Status, &PredictResponse{Error: serr.Message}, serr
	}

	detector := detection.NewThresholdModel()
	if err := detector.Load(state); err != nil {
		serr := model.NewInternalError("Unexpected error while restoring model.", err)
		return serr.Status, &PredictResponse{Error: serr.Message}, serr
	}

	anomaly, err := detector.Predict(point)
	if err != nil {
		serr := model.NewInternalError("Unexpected error while predicting.", err)
		return serr.Status, &PredictResponse{Error: serr.Message}, serr
	}

	return http.StatusOK, &PredictResponse{
		Anomaly:      anomaly,
		ModelVersion: strconv.FormatUint(record.Version, 10),
	}, nil
}

// resolveModelRecord maps the version-0 latest convention onto the
// repository getters.
func resolveModelRecord(db *gorm.DB, seriesID string, version uint64) (*model.AnomalyModel, *model.ServiceError) {
	var record *model.AnomalyModel
	var err error
	if version == VersionLatest {
		record, err = store.GetLastAnomalyModel(db, seriesID)
	} else {
		record, err = store.GetAnomalyModelVersion(db, seriesID, version)
	}

	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, model.NewNotFoundError("No trained model found for series.", err)
		}
		return nil, storeError("Unexpected error while resolving model version.", err)
	}

	return record, nil
}
