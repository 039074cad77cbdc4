package sdk

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	C "anomalydetect/config"
	"anomalydetect/detection"
	"anomalydetect/model"
	"anomalydetect/model/store"
)

// Train validates the payload, fits a model and persists the new
// version: placeholder row, both artifacts, then the path update, all
// inside one transaction. Rollback on any failure means neither the row
// nor the counter increment survives a failed artifact write.
func Train(sv *C.Services, seriesID string, payload *TrainPayload) (int, *TrainResponse) {
	logCtx := log.WithFields(log.Fields{"series_id": seriesID})

	status, resp, err := train(sv, seriesID, payload)
	if err != nil {
		logCtx.WithError(err).Error("Failed to train model.")
	}

	return status, resp
}

func train(sv *C.Services, seriesID string, payload *TrainPayload) (int, *TrainResponse, error) {
	if err := model.ValidateSeriesID(seriesID); err != nil {
		serr := model.NewConflictError(err.Error())
		return serr.Status, &TrainResponse{Error: serr.Message}, nil
	}

	ts, err := payload.toTimeSeries()
	if err == nil {
		err = ts.ValidateForTraining(sv.Config.MinTrainingPoints)
	}
	if err != nil {
		serr := model.NewValidationError(err.Error(), nil)
		return serr.Status, &TrainResponse{Error: serr.Message}, nil
	}

	trainer := detection.NewTrainer(detection.NewThresholdModel(), nil)
	state, err := trainer.Train(ts)
	if err != nil {
		serr := model.NewInternalError("Model training failed.", err)
		return serr.Status, &TrainResponse{Error: serr.Message}, serr
	}

	version, err := persistTrainedModel(sv, seriesID, state, ts)
	if err != nil {
		serr := asTrainError(err)
		return serr.Status, &TrainResponse{Error: serr.Message}, serr
	}

	return http.StatusOK, &TrainResponse{
		SeriesID:   seriesID,
		Version:    strconv.FormatUint(version, 10),
		PointsUsed: len(ts.Data),
	}, nil
}

// persistTrainedModel runs the artifact persistence protocol. The
// relational commit is deferred until both artifact writes succeed, so
// readers never see a version whose artifacts are missing.
func persistTrainedModel(sv *C.Services, seriesID string,
	state *model.ModelState, ts *model.TimeSeries) (uint64, error) {

	tx := sv.Db.Begin()
	if tx.Error != nil {
		return 0, errors.Wrap(tx.Error, "begin transaction")
	}

	record := store.BuildAnomalyModel(seriesID, 0, nil, nil)
	version, err := store.SaveAnomalyModel(tx, record)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "save placeholder record")
	}

	modelPath, err := sv.FileStore.SaveState(seriesID, version, state)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "save model state artifact")
	}

	dataPath, err := sv.FileStore.SaveData(seriesID, version, ts)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "save training data artifact")
	}

	if err := store.UpdateAnomalyModelPaths(tx, record, modelPath, dataPath); err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "attach artifact paths")
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "commit")
	}

	return version, nil
}

func asTrainError(err error) *model.ServiceError {
	if store.IsTransientConflict(errors.Cause(err)) {
		// Serialization conflicts are retryable by the client; after the
		// rollback there is nothing more to recover here.
		return model.NewInternalError(
			"Concurrent training conflict. Please retry.", err)
	}

	return storeError("Unexpected error while training model.", err)
}
