package domain

// Canonical column names for the merged customer dataset. The loader emits
// these; the engine tolerates any subset and skips derivations whose source
// columns are missing.
const (
	ColCustomerID = "customer_id"

	ColAge                      = "age"
	ColDepositBalance           = "deposit_balance"
	ColFinancialBalance         = "financial_balance"
	ColWealthManagementBalance  = "wealth_management_balance"
	ColFundBalance              = "fund_balance"
	ColInsuranceBalance         = "insurance_balance"
	ColTotalAum                 = "total_aum"
	ColMonthlyTransactionAmount = "monthly_transaction_amount"
	ColMonthlyTransactionCount  = "monthly_transaction_count"
	ColMobileBankLoginCount     = "mobile_bank_login_count"
	ColAccountOpenDate          = "account_open_date"
	ColLastAppLoginTime         = "last_app_login_time"
	ColSnapshotDate             = "snapshot_date"

	// derived
	ColDepositFlag              = "deposit_flag"
	ColFinancialFlag            = "financial_flag"
	ColFundFlag                 = "fund_flag"
	ColInsuranceFlag            = "insurance_flag"
	ColProductCount             = "product_count"
	ColTotalAssets              = "total_assets"
	ColMonthlyIncome            = "monthly_income"
	ColAppLoginCount            = "app_login_count"
	ColFinancialRepurchaseCount = "financial_repurchase_count"
	ColInvestmentMonthlyCount   = "investment_monthly_count"
	ColFutureTotalAssets        = "future_total_assets"
	ColLabel                    = "label"
	ColRecencyDays              = "recency_days"
	ColFrequency                = "frequency"
	ColMonetary                 = "monetary"
	ColAgeGroup                 = "age_group"
	ColAssetLevel               = "asset_level"
)

// ProductFlagColumns are the four product families mined for cross-sell
// patterns, in canonical order.
var ProductFlagColumns = []string{
	ColDepositFlag,
	ColFinancialFlag,
	ColFundFlag,
	ColInsuranceFlag,
}

// ProductDisplayNames maps flag columns to the names shown in rules,
// recommendations and reports.
var ProductDisplayNames = map[string]string{
	ColDepositFlag:   "Deposits",
	ColFinancialFlag: "Wealth Management",
	ColFundFlag:      "Funds",
	ColInsuranceFlag: "Insurance",
}
