package services

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kamikazebr/therapy-records/pkg/models"
	"github.com/kamikazebr/therapy-records/pkg/utils"
)

// undatedRecordDate is the effective date of records with no parseable date.
var undatedRecordDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// ColumnSet is the set of visible field columns, by 1-based field index.
// A nil set shows every column. Visibility never affects which rows match.
type ColumnSet map[int]bool

// ParseColumns builds a ColumnSet from field names. No names means all columns.
func ParseColumns(names []string) (ColumnSet, error) {
	var set ColumnSet
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		idx, ok := models.FieldIndex(name)
		if !ok {
			return nil, &ValidationError{Field: "columns", Message: "unknown column " + name}
		}
		if set == nil {
			set = make(ColumnSet)
		}
		set[idx] = true
	}
	return set, nil
}

func (c ColumnSet) Visible(idx int) bool {
	if c == nil {
		return idx >= 1 && idx <= len(models.FieldNames)
	}
	return c[idx]
}

// Names returns the visible field names in canonical order.
func (c ColumnSet) Names() []string {
	names := make([]string, 0, len(models.FieldNames))
	for i, name := range models.FieldNames {
		if c.Visible(i + 1) {
			names = append(names, name)
		}
	}
	return names
}

// QueryRequest selects, orders and projects records.
type QueryRequest struct {
	// From and To are DD/MM/YYYY. One alone means a single day.
	From string
	To   string
	// Filters maps field name to a case-insensitive substring.
	Filters map[string]string
	Columns ColumnSet
	// SortBy orders by a field, descending, instead of by effective date.
	SortBy string
}

type QueryResult struct {
	Records []models.DeviceRecord
	// Degraded is set when an unusable date range was dropped.
	Degraded bool
}

type dateRange struct {
	from, to time.Time
}

func (r *dateRange) contains(t time.Time) bool {
	return !t.Before(r.from) && !t.After(r.to)
}

// resolveDateRange returns nil when no range applies. An unparseable or
// inverted range is dropped and reported as degraded.
func resolveDateRange(from, to string) (rng *dateRange, degraded bool) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return nil, false
	}
	if from == "" {
		from = to
	}
	if to == "" {
		to = from
	}
	fromDate, ok1 := utils.ParseDate(from)
	toDate, ok2 := utils.ParseDate(to)
	if !ok1 || !ok2 || fromDate.After(toDate) {
		return nil, true
	}
	return &dateRange{from: fromDate, to: toDate}, false
}

// Query filters and orders records. It never mutates the input slice.
//
// Records are matched against the date range by effective date, then against
// every non-empty field filter. The result is ordered by effective date, most
// recent first, with undated records last and ties broken by id.
func Query(records []models.DeviceRecord, req QueryRequest) (*QueryResult, error) {
	for field := range req.Filters {
		if !models.IsField(field) {
			return nil, &ValidationError{Field: field, Message: "unknown filter field"}
		}
	}
	if req.SortBy != "" && !models.IsField(req.SortBy) {
		return nil, &ValidationError{Field: "sort", Message: "unknown sort field " + req.SortBy}
	}

	rng, degraded := resolveDateRange(req.From, req.To)

	matched := make([]models.DeviceRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		if rng != nil {
			d, ok := utils.ParseDate(r.EffectiveDate())
			if !ok || !rng.contains(d) {
				continue
			}
		}
		if !matchesFilters(&r.RecordFields, req.Filters) {
			continue
		}
		matched = append(matched, *r)
	}

	sortRecords(matched, req.SortBy)
	return &QueryResult{Records: matched, Degraded: degraded}, nil
}

func matchesFilters(f *models.RecordFields, filters map[string]string) bool {
	for field, sub := range filters {
		if sub == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(f.Get(field)), strings.ToLower(sub)) {
			return false
		}
	}
	return true
}

func effectiveDate(f *models.RecordFields) time.Time {
	if d, ok := utils.ParseDate(f.EffectiveDate()); ok {
		return d
	}
	return undatedRecordDate
}

func sortRecords(records []models.DeviceRecord, sortBy string) {
	dates := make(map[string]time.Time, len(records))
	for i := range records {
		dates[records[i].ID] = effectiveDate(&records[i].RecordFields)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		if sortBy != "" {
			if c := compareFieldValues(a.Get(sortBy), b.Get(sortBy)); c != 0 {
				return c > 0
			}
		}
		da, db := dates[a.ID], dates[b.ID]
		if !da.Equal(db) {
			return da.After(db)
		}
		return a.ID < b.ID
	})
}

// compareFieldValues compares numerically when both values are numbers,
// otherwise as case-insensitive text.
func compareFieldValues(a, b string) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Project renders records as rows for the visible columns. The id is
// always the first column.
func Project(records []models.DeviceRecord, columns ColumnSet) (header []string, rows [][]string) {
	names := columns.Names()
	header = append([]string{"id"}, names...)
	rows = make([][]string, 0, len(records))
	for i := range records {
		row := make([]string, 0, len(header))
		row = append(row, records[i].ID)
		for _, name := range names {
			row = append(row, records[i].Get(name))
		}
		rows = append(rows, row)
	}
	return header, rows
}
