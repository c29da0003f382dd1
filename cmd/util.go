package cmd

import (
	"database/sql"
	"fmt"
	"log"

	"bankiq/api"
	"bankiq/internal/app"
	"bankiq/internal/association"
	"bankiq/internal/clustering"
	"bankiq/internal/features"
	"bankiq/internal/predict"
	"bankiq/internal/repository"
	"bankiq/internal/timeseries"
	"bankiq/internal/util"

	_ "github.com/lib/pq"
)

func CloseDependencies(handler *api.ApiHandler) {
	if handler.Db == nil {
		return
	}
	err := handler.Db.Close()
	if err != nil {
		log.Fatalf("failed to close db: %v", err)
	}
}

func InitializeDependencies() (*api.ApiHandler, error) {
	secrets, err := util.LoadSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	var gptRepository repository.GptRepository
	if secrets.ChatGPTApiKey != "" {
		gptRepository, err = repository.NewGptRepository(secrets.ChatGPTApiKey)
		if err != nil {
			return nil, err
		}
	}

	var dbConn *sql.DB
	if secrets.Db.Host != "" {
		dbConn, err = sql.Open("postgres", secrets.Db.ToConnectionStr())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to db: %w", err)
		}
	}

	customerRepository := repository.NewCustomerRepository()
	csvRepository := repository.NewCsvCustomerRepository(secrets.DataDir)
	resultsRepository := repository.NewResultsRepository(secrets.OutputDir)

	engineer := features.NewEngineer(features.DefaultConfig())
	analysisHandler := &app.AnalysisHandler{
		Engineer:          engineer,
		Association:       association.NewAnalyzer(association.DefaultConfig(), engineer),
		Clusterer:         clustering.New(clustering.DefaultConfig(), engineer),
		Predictor:         predict.New(predict.DefaultConfig(), engineer),
		TrendAnalyzer:     timeseries.NewAssetTrendAnalyzer(timeseries.DefaultConfig()),
		ResultsRepository: resultsRepository,
		GptRepository:     gptRepository,
	}

	apiHandler := &api.ApiHandler{
		Db:                   dbConn,
		AnalysisHandler:      analysisHandler,
		CustomerRepository:   customerRepository,
		CsvRepository:        csvRepository,
		GptRepository:        gptRepository,
		ApiRequestRepository: repository.NewApiRequestRepository(),
		JwtSigningKey:        secrets.JwtSigningKey,
	}

	return apiHandler, nil
}
