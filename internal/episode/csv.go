package episode

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
)

var ledgerHeader = []string{
	"step",
	"time",
	"clock",
	"predicted_demand",
	"realized_demand",
	"actual_demand",
	"pcs_demand",
	"iso_buy_price",
	"iso_sell_price",
	"dispatch",
	"shortfall",
	"reserve_cost",
	"dispatch_cost",
	"action",
	"exchange",
	"requested_action",
	"battery_action",
	"level_start",
	"level_end",
	"iso_reward",
	"pcs_reward",
	"cum_iso_reward",
	"cum_pcs_reward",
	"energy_bought",
	"energy_sold",
}

func WriteLedgerCSV(path string, ledger []LedgerRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteLedger(f, ledger); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func WriteLedger(out io.Writer, ledger []LedgerRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(ledgerHeader); err != nil {
		return err
	}

	for _, r := range ledger {
		row := []string{
			strconv.Itoa(r.Step),
			fmtFloat(r.Time),
			r.Clock,
			fmtFloat(r.PredictedDemand),
			fmtFloat(r.RealizedDemand),
			fmtFloat(r.ActualDemand),
			fmtFloat(r.PCSDemand),
			fmtFloat(r.BuyPrice),
			fmtFloat(r.SellPrice),
			fmtFloat(r.Dispatch),
			fmtFloat(r.Shortfall),
			fmtFloat(r.ReserveCost),
			fmtFloat(r.DispatchCost),
			string(r.Action),
			string(r.Exchange),
			fmtFloat(r.RequestedAction),
			fmtFloat(r.BatteryAction),
			fmtFloat(r.LevelStart),
			fmtFloat(r.LevelEnd),
			fmtFloat(r.ISOReward),
			fmtFloat(r.PCSReward),
			fmtFloat(r.CumISOReward),
			fmtFloat(r.CumPCSReward),
			fmtFloat(r.EnergyBought),
			fmtFloat(r.EnergySold),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
