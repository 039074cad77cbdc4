package sdk

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	C "anomalydetect/config"
	"anomalydetect/filestore"
	"anomalydetect/model"
	"anomalydetect/quickchart"
)

type PlotResponse struct {
	SeriesID string `json:"series_id,omitempty"`
	Version  string `json:"version,omitempty"`
	Title    string `json:"title,omitempty"`
	ChartURL string `json:"chart_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Plot resolves the training data for a version (0 means latest), loads
// it from storage and builds a chart image URL for the HTML view.
func Plot(sv *C.Services, seriesID string, version uint64) (int, *PlotResponse) {
	logCtx := log.WithFields(log.Fields{"series_id": seriesID, "version": version})

	status, resp, err := plot(sv, seriesID, version)
	if err != nil {
		logCtx.WithError(err).Error("Failed to plot training data.")
	}

	return status, resp
}

func plot(sv *C.Services, seriesID string, version uint64) (int, *PlotResponse, error) {
	if err := model.ValidateSeriesID(seriesID); err != nil {
		serr := model.NewConflictError(err.Error())
		return serr.Status, &PlotResponse{Error: serr.Message}, nil
	}

	record, serr := resolveModelRecord(sv.Db, seriesID, version)
	if serr != nil {
		return serr.Status, &PlotResponse{Error: serr.Message}, serr.Err
	}

	if record.DataPath == nil {
		// Same out-of-band inconsistency signal as a missing model path.
		serr := model.NewInternalError("Data path missing on trained model record.", nil)
		return serr.Status, &PlotResponse{Error: serr.Message}, serr
	}

	ts, err := sv.FileStore.LoadData(*record.DataPath)
	if err != nil {
		if err == filestore.ErrNotFound {
			serr := model.NewNotFoundError("Training data artifact not found in storage.", err)
			return serr.Status, &PlotResponse{Error: serr.Message}, serr
		}
		serr := model.NewInternalError("Unexpected error while loading training data.", err)
		return serr.Status, &PlotResponse{Error: serr.Message}, serr
	}

	title := fmt.Sprintf("Training data for %s (v%d)", seriesID, record.Version)
	chartURL, err := quickchart.GetChartImageUrlForConfig(chartConfig(title, ts))
	if err != nil {
		serr := model.NewInternalError("Unexpected error while building chart.", err)
		return serr.Status, &PlotResponse{Error: serr.Message}, serr
	}

	return http.StatusOK, &PlotResponse{
		SeriesID: seriesID,
		Version:  strconv.FormatUint(record.Version, 10),
		Title:    title,
		ChartURL: chartURL,
	}, nil
}

func chartConfig(title string, ts *model.TimeSeries) quickchart.ChartConfig {
	labels := make([]interface{}, 0, len(ts.Data))
	values := make([]interface{}, 0, len(ts.Data))
	for _, point := range ts.Data {
		labels = append(labels,
			time.Unix(point.Timestamp, 0).UTC().Format("2006-01-02 15:04:05"))
		values = append(values, point.Value)
	}

	return quickchart.ChartConfig{
		Type: "bar",
		Data: quickchart.ChartData{
			Labels: labels,
			DataSets: []quickchart.Dataset{
				{Label: title, Data: values},
			},
		},
	}
}
