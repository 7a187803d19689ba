package inventory

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pscheid92/stockpulse/internal/domain"
)

// ReportWindow returns the inclusive [today-days, today] window.
func ReportWindow(today time.Time, days int) (from, to time.Time) {
	return AddDays(today, -days), DateOf(today)
}

type flow struct {
	income decimal.Decimal
	usage  decimal.Decimal
}

// Turnover builds one row per material that has movements in the window.
// Materials missing from materials are skipped.
func Turnover(materials []domain.Material, movements []domain.UsageEntry, from, to time.Time) []domain.TurnoverRow {
	byID := make(map[int64]domain.Material, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
	}

	flows := make(map[int64]*flow)
	for _, mv := range movements {
		d := DateOf(mv.OperationDate)
		if d.Before(from) || d.After(to) {
			continue
		}
		f, ok := flows[mv.MaterialID]
		if !ok {
			f = &flow{}
			flows[mv.MaterialID] = f
		}
		q := decimal.NewFromFloat(mv.Quantity)
		switch {
		case mv.OperationType == domain.OperationIn:
			f.income = f.income.Add(q)
		case mv.OperationType.IsOutflow():
			f.usage = f.usage.Add(q)
		}
	}

	rows := make([]domain.TurnoverRow, 0, len(flows))
	for id, f := range flows {
		m, ok := byID[id]
		if !ok {
			continue
		}
		rows = append(rows, turnoverRow(m, f))
	}

	slices.SortStableFunc(rows, func(a, b domain.TurnoverRow) int {
		if c := cmp.Compare(sortKey(b), sortKey(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return rows
}

func turnoverRow(m domain.Material, f *flow) domain.TurnoverRow {
	end := decimal.NewFromFloat(m.CurrentQuantity)
	start := end.Add(f.usage).Sub(f.income)
	if start.IsNegative() {
		start = decimal.Zero
	}
	avg := start.Add(end).Div(decimal.NewFromInt(2))

	row := domain.TurnoverRow{
		MaterialID: m.ID,
		Name:       m.Name,
		Unit:       m.Unit,
		Income:     f.income.InexactFloat64(),
		Usage:      f.usage.InexactFloat64(),
		StartStock: start.Round(2).InexactFloat64(),
		EndStock:   m.CurrentQuantity,
		AvgStock:   avg.Round(2).InexactFloat64(),
	}
	if avg.IsPositive() && f.usage.IsPositive() {
		t := f.usage.Div(avg).Round(2).InexactFloat64()
		row.Turnover = &t
	}
	return row
}

func sortKey(r domain.TurnoverRow) float64 {
	if r.Turnover == nil {
		return -1
	}
	return *r.Turnover
}
