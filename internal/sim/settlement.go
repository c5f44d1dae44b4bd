package sim

import (
	"time"

	"github.com/shopspring/decimal"

	"kidsmoney/internal/model"
)

var maxTaxRate = decimal.RequireFromString("0.5")

const disasterLevyPerSeverity = int64(5)

// settle runs the end-of-turn money effects: deposit and debt interest,
// salaries, income tax and the disaster repair levy. Only players are
// affected; bankers and admins run the game.
func settle(st *model.GameState, now time.Time) {
	taxRate := st.Settings.TaxRate.Add(st.Economy.TaxAdjustment)
	if taxRate.IsNegative() {
		taxRate = decimal.Zero
	}
	if taxRate.GreaterThan(maxTaxRate) {
		taxRate = maxTaxRate
	}
	debtRate := st.Economy.InterestRate.Add(st.Settings.LoanRate)

	for i := range st.Users {
		u := &st.Users[i]
		if u.Role != model.RolePlayer {
			continue
		}

		if interest := model.ApplyRate(u.Deposit, st.Settings.DepositRate); interest > 0 {
			u.Deposit += interest
			st.Treasury.Minted += interest
			u.Record("deposit_interest", interest, "bank", "credited to deposit", st.Turn, now)
		}

		if interest := model.ApplyRateCeil(u.Debt, debtRate); interest > 0 {
			u.Debt += interest
			u.Record("debt_interest", 0, "bank", "added to debt", st.Turn, now)
		}

		if job, ok := model.JobByID(u.Job); ok {
			if pay := model.ApplyRate(job.Salary, st.Settings.SalaryMultiplier); pay > 0 {
				u.Balance += pay
				st.Treasury.Minted += pay
				u.Record("salary", pay, "employer", job.Title, st.Turn, now)
			}
		}

		if tax := model.ApplyRate(u.Balance, taxRate); tax > 0 {
			u.Balance -= tax
			st.Treasury.Taxes += tax
			u.Record("tax", -tax, "treasury", "", st.Turn, now)
		}

		if d := st.Environment.Disaster; d != nil && u.Balance > 0 {
			levy := min(u.Balance, int64(d.Severity)*disasterLevyPerSeverity)
			u.Balance -= levy
			st.Treasury.Burned += levy
			u.Record("disaster_levy", -levy, "treasury", d.Kind, st.Turn, now)
		}
	}
}
