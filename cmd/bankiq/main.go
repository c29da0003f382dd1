package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"bankiq/api"
	"bankiq/cmd"
	"bankiq/internal/domain"
	"bankiq/internal/logger"
	"bankiq/internal/util"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var (
	sourceFlag string
	exportFlag bool
)

func loadFrames(handler *api.ApiHandler) (*domain.Frame, *domain.Frame, error) {
	if sourceFlag == "db" {
		customers, err := handler.CustomerRepository.LoadFrame(handler.Db)
		if err != nil {
			return nil, nil, err
		}
		// the api windows asset history by date; the CLI takes it all
		assets, err := handler.CustomerRepository.LoadAssetFrame(handler.Db, util.NewDate(2000, 1, 1), time.Now().UTC())
		if err != nil {
			return nil, nil, err
		}
		return customers, assets, nil
	}

	customers, err := handler.CsvRepository.LoadFrame()
	if err != nil {
		return nil, nil, err
	}
	assets, err := handler.CsvRepository.LoadAssetFrame()
	if err != nil {
		return nil, nil, err
	}
	return customers, assets, nil
}

func newAnalyzeCmd(handler *api.ApiHandler) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Run the full analytics pipeline over the customer dataset",
		RunE: func(c *cobra.Command, args []string) error {
			customers, assets, err := loadFrames(handler)
			if err != nil {
				return err
			}

			result, err := handler.AnalysisHandler.Run(c.Context(), customers, assets)
			if err != nil {
				return err
			}

			if exportFlag {
				if err := handler.AnalysisHandler.Export(c.Context()); err != nil {
					return err
				}
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newScoreCmd(handler *api.ApiHandler) *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Score every customer with the fitted high-value model",
		RunE: func(c *cobra.Command, args []string) error {
			customers, assets, err := loadFrames(handler)
			if err != nil {
				return err
			}

			if _, err := handler.AnalysisHandler.Run(c.Context(), customers, assets); err != nil {
				return err
			}
			x, err := handler.AnalysisHandler.PrepareScoringData(customers)
			if err != nil {
				return err
			}
			probs, err := handler.AnalysisHandler.ScoreCustomers(x)
			if err != nil {
				return err
			}

			ids := customers.IDs()
			for i, p := range probs {
				id := fmt.Sprintf("row %d", i)
				if ids != nil {
					id = ids[i]
				}
				fmt.Printf("%s\t%.4f\n", id, p)
			}
			return nil
		},
	}
}

func newExplainCmd(handler *api.ApiHandler) *cobra.Command {
	var topN int
	c := &cobra.Command{
		Use:   "explain",
		Short: "Attribute every customer's high-value score to its features",
		RunE: func(c *cobra.Command, args []string) error {
			customers, assets, err := loadFrames(handler)
			if err != nil {
				return err
			}
			if _, err := handler.AnalysisHandler.Run(c.Context(), customers, assets); err != nil {
				return err
			}
			x, err := handler.AnalysisHandler.PrepareScoringData(customers)
			if err != nil {
				return err
			}
			explanations, err := handler.AnalysisHandler.ExplainCustomers(x, topN)
			if err != nil {
				return err
			}

			if exportFlag {
				if err := handler.AnalysisHandler.ExportAttributions(explanations); err != nil {
					return err
				}
			}

			ids := customers.IDs()
			for _, e := range explanations {
				id := fmt.Sprintf("row %d", e.Index)
				if ids != nil {
					id = ids[e.Index]
				}
				for _, a := range e.Top {
					fmt.Printf("%s\t%s\t%+.4f\n", id, a.Feature, a.Value)
				}
			}
			return nil
		},
	}
	c.Flags().IntVar(&topN, "top", 3, "number of contributing features to report per customer")
	return c
}

func newChatCmd(handler *api.ApiHandler) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask the assistant about the latest analysis run",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			customers, assets, err := loadFrames(handler)
			if err != nil {
				return err
			}
			if _, err := handler.AnalysisHandler.Run(c.Context(), customers, assets); err != nil {
				return err
			}

			answer, err := handler.AnalysisHandler.AnswerQuestion(c.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}
}

func main() {
	log := logger.New()

	handler, err := cmd.InitializeDependencies()
	if err != nil {
		log.Fatal(err)
	}
	defer cmd.CloseDependencies(handler)

	root := &cobra.Command{
		Use:          "bankiq",
		Short:        "Customer analytics engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&sourceFlag, "source", "csv", "customer data source: csv or db")
	root.PersistentFlags().BoolVar(&exportFlag, "export", false, "write run outputs as csv files")

	root.AddCommand(newAnalyzeCmd(handler))
	root.AddCommand(newScoreCmd(handler))
	root.AddCommand(newExplainCmd(handler))
	root.AddCommand(newChatCmd(handler))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
