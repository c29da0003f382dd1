package api

import (
	"fmt"
	"time"

	"bankiq/internal/domain"
	"bankiq/internal/util"

	"github.com/gin-gonic/gin"
)

// the trend analyzer wants up to three years of monthly history
func snapshotWindowStart() time.Time {
	return util.MonthStart(time.Now().UTC()).AddDate(-3, 0, 0)
}

func snapshotWindowEnd() time.Time {
	return time.Now().UTC()
}

type runAnalysisRequest struct {
	// Source selects where customer data comes from: "db" (default) or "csv".
	Source string `json:"source"`
	Export bool   `json:"export"`
}

func (m *ApiHandler) runAnalysis(ctx *gin.Context) {
	req := runAnalysisRequest{}
	if err := ctx.BindJSON(&req); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to parse request: %w", err), ctx, 400)
		return
	}

	customers, assets, err := m.loadFrames(req.Source)
	if err != nil {
		returnErrorJson(fmt.Errorf("failed to load customer data: %w", err), ctx)
		return
	}

	result, err := m.AnalysisHandler.Run(ctx, customers, assets)
	if err != nil {
		returnErrorJson(fmt.Errorf("failed to run analysis: %w", err), ctx)
		return
	}

	if req.Export {
		if err := m.AnalysisHandler.Export(ctx); err != nil {
			returnErrorJson(err, ctx)
			return
		}
	}

	ctx.JSON(200, result)
}

func (m *ApiHandler) loadFrames(source string) (*domain.Frame, *domain.Frame, error) {
	if source == "csv" {
		if m.CsvRepository == nil {
			return nil, nil, fmt.Errorf("csv data source is not configured")
		}
		customers, err := m.CsvRepository.LoadFrame()
		if err != nil {
			return nil, nil, err
		}
		assets, err := m.CsvRepository.LoadAssetFrame()
		if err != nil {
			return nil, nil, err
		}
		return customers, windowAssetFrame(assets, snapshotWindowStart(), snapshotWindowEnd()), nil
	}

	customers, err := m.CustomerRepository.LoadFrame(m.Db)
	if err != nil {
		return nil, nil, err
	}
	assets, err := m.CustomerRepository.LoadAssetFrame(m.Db, snapshotWindowStart(), snapshotWindowEnd())
	if err != nil {
		return nil, nil, err
	}
	return customers, assets, nil
}

// windowAssetFrame applies the snapshot window to an unbounded asset history.
// The db loader filters in SQL; the csv loader returns everything, so the
// window is applied here. The end bound is date-granular: snapshots taken
// later on the end day still count.
func windowAssetFrame(assets *domain.Frame, start, end time.Time) *domain.Frame {
	dates := assets.TimeColumn(domain.ColSnapshotDate)
	values := assets.Column(domain.ColTotalAssets)

	outDates := []time.Time{}
	outValues := []float64{}
	for i, t := range dates {
		if t.Before(start) || !util.DateLte(t, end) {
			continue
		}
		outDates = append(outDates, t)
		outValues = append(outValues, values[i])
	}

	out := domain.NewFrame(len(outDates))
	out.SetTimeColumn(domain.ColSnapshotDate, outDates)
	out.SetColumn(domain.ColTotalAssets, outValues)
	return out
}
