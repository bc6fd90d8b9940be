package canonical

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/utlib/eacli/internal/record"
)

// Academic-period handling. An academic year runs September to August and
// is named by its starting calendar year: "2023" means 2023-2024. The named
// periods within a year:
//
//	1A, 1B  first semester quartiles
//	2A, 2B  second semester quartiles
//	3       summer term
//	SEM1    first semester
//	SEM2    second semester
//	JAAR    full year
var periodOrder = map[string]int{
	"1A": 1,
	"1B": 2,
	"2A": 3,
	"2B": 4,
	"3":  5,
}

var orderPeriod = map[int]string{
	1: "1A",
	2: "1B",
	3: "2A",
	4: "2B",
	5: "3",
}

// periodColumn is the normalized source column period filtering keys on.
const periodColumn = "period"

// ParsePeriodRange expands a period range into the full set of period tags
// it covers, including the aggregate tags (SEM1, SEM2, JAAR) and the summer
// term implied by a range reaching the final quartile.
//
// Both bounds are "YYYY-PP" with PP one of 1A, 1B, 2A, 2B, 3. The result is
// sorted for stable output.
func ParsePeriodRange(start, end string) ([]string, error) {
	startYear, startNum, err := parsePeriod(start)
	if err != nil {
		return nil, err
	}
	endYear, endNum, err := parsePeriod(end)
	if err != nil {
		return nil, err
	}
	if endYear < startYear || (endYear == startYear && endNum < startNum) {
		return nil, fmt.Errorf("period range %s..%s runs backwards", start, end)
	}

	set := make(map[string]bool)
	for year := startYear; year <= endYear; year++ {
		first, last := 1, 5
		if year == startYear {
			first = startNum
		}
		if year == endYear {
			last = endNum
		}

		for p := first; p <= last; p++ {
			set[fmt.Sprintf("%d-%s", year, orderPeriod[p])] = true
		}
		if first <= 2 && last >= 2 {
			set[fmt.Sprintf("%d-SEM1", year)] = true
		}
		if first <= 4 && last >= 4 {
			set[fmt.Sprintf("%d-SEM2", year)] = true
		}
		if first <= 2 && last >= 4 {
			set[fmt.Sprintf("%d-JAAR", year)] = true
		}
		if last >= 4 {
			set[fmt.Sprintf("%d-3", year)] = true
		}
	}

	periods := make([]string, 0, len(set))
	for p := range set {
		periods = append(periods, p)
	}
	sort.Strings(periods)
	return periods, nil
}

func parsePeriod(s string) (year, num int, err error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid period %q: want YYYY-PP", s)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period year in %q: %w", s, err)
	}
	num, ok := periodOrder[parts[1]]
	if !ok {
		return 0, 0, fmt.Errorf("invalid period tag %q in %q", parts[1], s)
	}
	return year, num, nil
}

// FilterPeriods keeps the records whose period column matches one of the
// given tags. Records without a period column are retained: period tagging
// is an optional feature of the upstream export.
func FilterPeriods(records []record.Record, periods []string) []record.Record {
	if len(periods) == 0 {
		return records
	}
	set := make(map[string]bool, len(periods))
	for _, p := range periods {
		set[p] = true
	}

	var kept []record.Record
	for _, rec := range records {
		if !rec.Has(periodColumn) || set[rec.Get(periodColumn)] {
			kept = append(kept, rec)
		}
	}
	return kept
}
