package repository

import (
	"fmt"
	"math"
	"time"

	"bankiq/internal/domain"

	"github.com/go-jet/jet/v2/postgres"
	"github.com/go-jet/jet/v2/qrm"
	"github.com/shopspring/decimal"
)

// CustomerRecord is one row of the customer base joined with its latest
// behavior snapshot. Nullable columns come back as pointers and turn into
// NaN cells in the frame.
type CustomerRecord struct {
	CustomerID               string
	Age                      *float64
	DepositBalance           *decimal.Decimal
	WealthManagementBalance  *decimal.Decimal
	FundBalance              *decimal.Decimal
	InsuranceBalance         *decimal.Decimal
	TotalAum                 *decimal.Decimal
	AccountOpenDate          *time.Time
	MonthlyTransactionAmount *decimal.Decimal
	MonthlyTransactionCount  *float64
	MobileBankLoginCount     *float64
	FinancialRepurchaseCount *float64
	InvestmentMonthlyCount   *float64
	LastAppLoginTime         *time.Time
}

// AssetSnapshot is one point of a customer's asset history.
type AssetSnapshot struct {
	CustomerID   string
	SnapshotDate time.Time
	TotalAssets  decimal.Decimal
}

type CustomerRepository interface {
	ListCustomers(db qrm.Queryable) ([]CustomerRecord, error)
	ListAssetSnapshots(db qrm.Queryable, start, end time.Time) ([]AssetSnapshot, error)
	LoadFrame(db qrm.Queryable) (*domain.Frame, error)
	LoadAssetFrame(db qrm.Queryable, start, end time.Time) (*domain.Frame, error)
}

func NewCustomerRepository() CustomerRepository {
	return customerRepositoryHandler{}
}

type customerRepositoryHandler struct{}

const listCustomersSql = `
SELECT
  cb.customer_id AS customer_id,
  cb.age AS age,
  cb.deposit_balance AS deposit_balance,
  cb.wealth_management_balance AS wealth_management_balance,
  cb.fund_balance AS fund_balance,
  cb.insurance_balance AS insurance_balance,
  cb.total_aum AS total_aum,
  cb.account_open_date AS account_open_date,
  ba.monthly_transaction_amount AS monthly_transaction_amount,
  ba.monthly_transaction_count AS monthly_transaction_count,
  ba.mobile_bank_login_count AS mobile_bank_login_count,
  ba.financial_repurchase_count AS financial_repurchase_count,
  ba.investment_monthly_count AS investment_monthly_count,
  ba.last_app_login_time AS last_app_login_time
FROM customer_base cb
LEFT JOIN customer_behavior_assets ba ON ba.customer_id = cb.customer_id
ORDER BY cb.customer_id ASC
`

func (h customerRepositoryHandler) ListCustomers(db qrm.Queryable) ([]CustomerRecord, error) {
	query := postgres.RawStatement(listCustomersSql)

	out := []CustomerRecord{}
	err := query.Query(db, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	return out, nil
}

const listSnapshotsSql = `
SELECT
  s.customer_id AS customer_id,
  s.snapshot_date AS snapshot_date,
  s.total_assets AS total_assets
FROM customer_asset_snapshot s
WHERE s.snapshot_date BETWEEN #start AND #end
ORDER BY s.snapshot_date ASC
`

func (h customerRepositoryHandler) ListAssetSnapshots(db qrm.Queryable, start, end time.Time) ([]AssetSnapshot, error) {
	query := postgres.RawStatement(listSnapshotsSql, postgres.RawArgs{
		"#start": start,
		"#end":   end,
	})

	out := []AssetSnapshot{}
	err := query.Query(db, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset snapshots: %w", err)
	}

	return out, nil
}

// LoadFrame pulls the joined customer table into the column layout the
// analytic components consume.
func (h customerRepositoryHandler) LoadFrame(db qrm.Queryable) (*domain.Frame, error) {
	records, err := h.ListCustomers(db)
	if err != nil {
		return nil, err
	}

	n := len(records)
	f := domain.NewFrame(n)

	ids := make([]string, n)
	numeric := map[string][]float64{
		domain.ColAge:                      newNaNColumn(n),
		domain.ColDepositBalance:           newNaNColumn(n),
		domain.ColWealthManagementBalance:  newNaNColumn(n),
		domain.ColFundBalance:              newNaNColumn(n),
		domain.ColInsuranceBalance:         newNaNColumn(n),
		domain.ColTotalAum:                 newNaNColumn(n),
		domain.ColMonthlyTransactionAmount: newNaNColumn(n),
		domain.ColMonthlyTransactionCount:  newNaNColumn(n),
		domain.ColMobileBankLoginCount:     newNaNColumn(n),
		domain.ColFinancialRepurchaseCount: newNaNColumn(n),
		domain.ColInvestmentMonthlyCount:   newNaNColumn(n),
	}
	openDates := make([]time.Time, n)
	loginTimes := make([]time.Time, n)

	for i, r := range records {
		ids[i] = r.CustomerID
		setIfPresent(numeric[domain.ColAge], i, r.Age)
		setDecimal(numeric[domain.ColDepositBalance], i, r.DepositBalance)
		setDecimal(numeric[domain.ColWealthManagementBalance], i, r.WealthManagementBalance)
		setDecimal(numeric[domain.ColFundBalance], i, r.FundBalance)
		setDecimal(numeric[domain.ColInsuranceBalance], i, r.InsuranceBalance)
		setDecimal(numeric[domain.ColTotalAum], i, r.TotalAum)
		setDecimal(numeric[domain.ColMonthlyTransactionAmount], i, r.MonthlyTransactionAmount)
		setIfPresent(numeric[domain.ColMonthlyTransactionCount], i, r.MonthlyTransactionCount)
		setIfPresent(numeric[domain.ColMobileBankLoginCount], i, r.MobileBankLoginCount)
		setIfPresent(numeric[domain.ColFinancialRepurchaseCount], i, r.FinancialRepurchaseCount)
		setIfPresent(numeric[domain.ColInvestmentMonthlyCount], i, r.InvestmentMonthlyCount)
		if r.AccountOpenDate != nil {
			openDates[i] = *r.AccountOpenDate
		}
		if r.LastAppLoginTime != nil {
			loginTimes[i] = *r.LastAppLoginTime
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
		f.SetColumn(name, numeric[name])
	}
	f.SetTimeColumn(domain.ColAccountOpenDate, openDates)
	f.SetTimeColumn(domain.ColLastAppLoginTime, loginTimes)

	return f, nil
}

// LoadAssetFrame shapes asset snapshots into the frame the trend analyzer
// expects: one row per snapshot with a date column and total assets.
func (h customerRepositoryHandler) LoadAssetFrame(db qrm.Queryable, start, end time.Time) (*domain.Frame, error) {
	snapshots, err := h.ListAssetSnapshots(db, start, end)
	if err != nil {
		return nil, err
	}

	n := len(snapshots)
	f := domain.NewFrame(n)
	ids := make([]string, n)
	dates := make([]time.Time, n)
	assets := make([]float64, n)
	for i, s := range snapshots {
		ids[i] = s.CustomerID
		dates[i] = s.SnapshotDate
		assets[i] = s.TotalAssets.InexactFloat64()
	}

	f.SetIDs(ids)
	f.SetTimeColumn(domain.ColSnapshotDate, dates)
	f.SetColumn(domain.ColTotalAssets, assets)

	return f, nil
}

func newNaNColumn(n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = math.NaN()
	}
	return col
}

func setIfPresent(col []float64, i int, v *float64) {
	if v != nil {
		col[i] = *v
	}
}

func setDecimal(col []float64, i int, v *decimal.Decimal) {
	if v != nil {
		col[i], _ = v.Float64()
	}
}
