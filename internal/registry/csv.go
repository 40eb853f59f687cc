package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrInvalidInterval = errors.New("interval must be a positive integer")

// Entry is one parsed row of a site listing.
type Entry struct {
	URL             string // normalized
	IntervalSeconds int
	Pattern         string
	Line            int
}

// Skipped is a row that parsed but was left out of the listing.
type Skipped struct {
	Entry  Entry
	Reason string
}

// ParseCSV reads `url,interval[,pattern]` rows. A header row, blank lines and
// lines starting with '#' are ignored. A malformed row aborts the whole parse;
// a repeated URL keeps the first occurrence and reports the rest as skipped.
func ParseCSV(r io.Reader) ([]Entry, []Skipped, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	cr.LazyQuotes = true

	var (
		entries []Entry
		skipped []Skipped
		seen    = make(map[string]int)
		first   = true
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read sites: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if first {
			first = false
			if isHeader(rec) {
				continue
			}
		}
		if len(rec) < 2 || len(rec) > 3 {
			return nil, nil, fmt.Errorf("line %d: want url,interval[,pattern], got %d fields", line, len(rec))
		}

		u, err := Normalize(rec[0])
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		interval, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil || interval <= 0 {
			return nil, nil, fmt.Errorf("line %d: %q: %w", line, rec[1], ErrInvalidInterval)
		}
		e := Entry{URL: u, IntervalSeconds: interval, Line: line}
		if len(rec) == 3 {
			e.Pattern = strings.TrimSpace(rec[2])
		}

		if prev, dup := seen[u]; dup {
			skipped = append(skipped, Skipped{Entry: e, Reason: fmt.Sprintf("duplicate of line %d", prev)})
			continue
		}
		seen[u] = line
		entries = append(entries, e)
	}
	return entries, skipped, nil
}

func isHeader(rec []string) bool {
	if len(rec) < 2 {
		return false
	}
	c0 := strings.ToLower(strings.TrimSpace(rec[0]))
	c1 := strings.ToLower(strings.TrimSpace(rec[1]))
	return (c0 == "url" || c0 == "host") && c1 == "interval"
}
