package inventory

import (
	"time"

	"github.com/pscheid92/stockpulse/internal/domain"
)

type ExpiryStatus string

const (
	ExpiryUnknown ExpiryStatus = ""
	ExpiryExpired ExpiryStatus = "expired"
	ExpirySoon    ExpiryStatus = "soon"
	ExpiryOK      ExpiryStatus = "ok"
)

const (
	RowCritical = "table-danger"
	RowWarning  = "table-warning"
	RowNormal   = "table-light"
)

// Row is a material annotated with its urgency on a given day.
type Row struct {
	domain.Material
	DaysUntilExpiry *int
	ExpiryStatus    ExpiryStatus
	Critical        bool
	Warning         bool
	BelowThreshold  bool
	RowClass        string
}

// Summary holds the counters shown above the material list.
type Summary struct {
	Total          int
	Critical       int
	BelowThreshold int
	ExpiringSoon   int
}

// Classify annotates m for today.
//
// Critical: out of stock or expired. Warning: expires within SoonDays, or stock is
// positive but under the threshold.
func Classify(m domain.Material, today time.Time) Row {
	row := Row{Material: m}

	soon := false
	expired := false
	if m.ExpirationDate != nil {
		days := DaysBetween(today, *m.ExpirationDate)
		row.DaysUntilExpiry = &days
		switch {
		case days < 0:
			row.ExpiryStatus = ExpiryExpired
			expired = true
		case days <= SoonDays:
			row.ExpiryStatus = ExpirySoon
			soon = true
		default:
			row.ExpiryStatus = ExpiryOK
		}
	}

	row.BelowThreshold = m.CurrentQuantity > 0 && m.CurrentQuantity < m.MinThreshold
	row.Critical = m.CurrentQuantity == 0 || expired
	row.Warning = soon || row.BelowThreshold

	switch {
	case row.Critical:
		row.RowClass = RowCritical
	case row.Warning:
		row.RowClass = RowWarning
	default:
		row.RowClass = RowNormal
	}
	return row
}

func ClassifyAll(materials []domain.Material, today time.Time) []Row {
	rows := make([]Row, 0, len(materials))
	for _, m := range materials {
		rows = append(rows, Classify(m, today))
	}
	return rows
}

func Summarize(rows []Row) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		if r.Critical {
			s.Critical++
		}
		if r.BelowThreshold {
			s.BelowThreshold++
		}
		if r.ExpiryStatus == ExpirySoon {
			s.ExpiringSoon++
		}
	}
	return s
}
