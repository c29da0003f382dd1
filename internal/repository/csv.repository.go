package repository

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"bankiq/internal/domain"

	"github.com/gocarina/gocsv"
)

// CsvCustomerRepository loads the customer dataset from flat files instead of
// postgres. The layout mirrors the warehouse extract: customer_base.csv,
// customer_behavior_assets.csv and optionally asset_snapshots.csv in one
// directory.
type CsvCustomerRepository interface {
	LoadFrame() (*domain.Frame, error)
	LoadAssetFrame() (*domain.Frame, error)
}

func NewCsvCustomerRepository(dir string) CsvCustomerRepository {
	return csvCustomerRepositoryHandler{Dir: dir}
}

type csvCustomerRepositoryHandler struct {
	Dir string
}

type customerBaseRow struct {
	CustomerID              string  `csv:"customer_id"`
	Age                     float64 `csv:"age"`
	DepositBalance          float64 `csv:"deposit_balance"`
	WealthManagementBalance float64 `csv:"wealth_management_balance"`
	FundBalance             float64 `csv:"fund_balance"`
	InsuranceBalance        float64 `csv:"insurance_balance"`
	TotalAum                float64 `csv:"total_aum"`
	AccountOpenDate         string  `csv:"account_open_date"`
}

type behaviorRow struct {
	CustomerID               string  `csv:"customer_id"`
	MonthlyTransactionAmount float64 `csv:"monthly_transaction_amount"`
	MonthlyTransactionCount  float64 `csv:"monthly_transaction_count"`
	MobileBankLoginCount     float64 `csv:"mobile_bank_login_count"`
	FinancialRepurchaseCount float64 `csv:"financial_repurchase_count"`
	InvestmentMonthlyCount   float64 `csv:"investment_monthly_count"`
	LastAppLoginTime         string  `csv:"last_app_login_time"`
}

type snapshotRow struct {
	CustomerID   string  `csv:"customer_id"`
	SnapshotDate string  `csv:"snapshot_date"`
	TotalAssets  float64 `csv:"total_assets"`
}

func readCsv[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows := []T{}
	err = gocsv.UnmarshalFile(f, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return rows, nil
}

// LoadFrame reads both customer files and inner-joins them on customer_id.
// Customers missing a behavior row are dropped, matching the warehouse
// extract semantics.
func (h csvCustomerRepositoryHandler) LoadFrame() (*domain.Frame, error) {
	base, err := readCsv[customerBaseRow](filepath.Join(h.Dir, "customer_base.csv"))
	if err != nil {
		return nil, err
	}
	behavior, err := readCsv[behaviorRow](filepath.Join(h.Dir, "customer_behavior_assets.csv"))
	if err != nil {
		return nil, err
	}

	behaviorByID := map[string]behaviorRow{}
	for _, b := range behavior {
		behaviorByID[b.CustomerID] = b
	}

	type merged struct {
		base     customerBaseRow
		behavior behaviorRow
	}
	rows := []merged{}
	for _, b := range base {
		if beh, ok := behaviorByID[b.CustomerID]; ok {
			rows = append(rows, merged{base: b, behavior: beh})
		}
	}

	n := len(rows)
	f := domain.NewFrame(n)

	ids := make([]string, n)
	cols := map[string][]float64{}
	for _, name := range []string{
		domain.ColAge,
		domain.ColDepositBalance,
		domain.ColWealthManagementBalance,
		domain.ColFundBalance,
		domain.ColInsuranceBalance,
		domain.ColTotalAum,
		domain.ColMonthlyTransactionAmount,
		domain.ColMonthlyTransactionCount,
		domain.ColMobileBankLoginCount,
		domain.ColFinancialRepurchaseCount,
		domain.ColInvestmentMonthlyCount,
	} {
		cols[name] = make([]float64, n)
	}
	openDates := make([]time.Time, n)
	loginTimes := make([]time.Time, n)

	for i, r := range rows {
		ids[i] = r.base.CustomerID
		cols[domain.ColAge][i] = r.base.Age
		cols[domain.ColDepositBalance][i] = r.base.DepositBalance
		cols[domain.ColWealthManagementBalance][i] = r.base.WealthManagementBalance
		cols[domain.ColFundBalance][i] = r.base.FundBalance
		cols[domain.ColInsuranceBalance][i] = r.base.InsuranceBalance
		cols[domain.ColTotalAum][i] = r.base.TotalAum
		cols[domain.ColMonthlyTransactionAmount][i] = r.behavior.MonthlyTransactionAmount
		cols[domain.ColMonthlyTransactionCount][i] = r.behavior.MonthlyTransactionCount
		cols[domain.ColMobileBankLoginCount][i] = r.behavior.MobileBankLoginCount
		cols[domain.ColFinancialRepurchaseCount][i] = r.behavior.FinancialRepurchaseCount
		cols[domain.ColInvestmentMonthlyCount][i] = r.behavior.InvestmentMonthlyCount

		openDates[i], err = parseDate(r.base.AccountOpenDate)
		if err != nil {
			return nil, fmt.Errorf("bad account_open_date for customer %s: %w", r.base.CustomerID, err)
		}
		loginTimes[i], err = parseDate(r.behavior.LastAppLoginTime)
		if err != nil {
			return nil, fmt.Errorf("bad last_app_login_time for customer %s: %w", r.base.CustomerID, err)
		}
	}

	f.SetIDs(ids)
	for _, name := range []string{
		domain.ColAge,
		domain.ColDepositBalance,
		domain.ColWealthManagementBalance,
		domain.ColFundBalance,
		domain.ColInsuranceBalance,
		domain.ColTotalAum,
		domain.ColMonthlyTransactionAmount,
		domain.ColMonthlyTransactionCount,
		domain.ColMobileBankLoginCount,
		domain.ColFinancialRepurchaseCount,
		domain.ColInvestmentMonthlyCount,
	} {
		f.SetColumn(name, cols[name])
	}
	f.SetTimeColumn(domain.ColAccountOpenDate, openDates)
	f.SetTimeColumn(domain.ColLastAppLoginTime, loginTimes)

	return f, nil
}

// LoadAssetFrame reads asset_snapshots.csv. A missing file is not an error;
// the trend analyzer falls back to a synthesized series when history is
// absent, so we return an empty frame.
func (h csvCustomerRepositoryHandler) LoadAssetFrame() (*domain.Frame, error) {
	path := filepath.Join(h.Dir, "asset_snapshots.csv")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f := domain.NewFrame(0)
		f.SetTimeColumn(domain.ColSnapshotDate, []time.Time{})
		f.SetColumn(domain.ColTotalAssets, []float64{})
		return f, nil
	}

	rows, err := readCsv[snapshotRow](path)
	if err != nil {
		return nil, err
	}

	n := len(rows)
	f := domain.NewFrame(n)
	ids := make([]string, n)
	dates := make([]time.Time, n)
	assets := make([]float64, n)
	for i, r := range rows {
		ids[i] = r.CustomerID
		dates[i], err = parseDate(r.SnapshotDate)
		if err != nil {
			return nil, fmt.Errorf("bad snapshot_date for customer %s: %w", r.CustomerID, err)
		}
		assets[i] = r.TotalAssets
		if math.IsNaN(assets[i]) {
			assets[i] = 0
		}
	}

	f.SetIDs(ids)
	f.SetTimeColumn(domain.ColSnapshotDate, dates)
	f.SetColumn(domain.ColTotalAssets, assets)

	return f, nil
}

// parseDate accepts either a bare date or a full timestamp; the extract is
// inconsistent about which one it emits. Empty cells become the zero time,
// which downstream aggregation skips.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
