package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"javaidx/scanner"
)

// TimeLayout renders record timestamps in local time.
const TimeLayout = "2006-01-02 15:04"

// Columns is the header row of the delimited table.
var Columns = []string{
	"File Path",
	"File Name",
	"URL",
	"Headers",
	"Content Length",
	"Modified",
	"Expiration",
	"Validation",
}

// WriteTable writes a header row and one row per entry, quoting fields as
// needed for delim.
func WriteTable(w io.Writer, entries []*scanner.Entry, delim rune) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(tableRow(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func tableRow(e *scanner.Entry) []string {
	return []string{
		e.Path,
		e.FileName,
		e.URL,
		e.HeadersText(),
		strconv.FormatInt(int64(e.ContentLength), 10),
		formatTime(e.LastModified),
		formatTime(e.Expiration),
		formatTime(e.Validation),
	}
}

// WriteConsole prints each entry as labelled lines followed by a blank line.
func WriteConsole(w io.Writer, entries []*scanner.Entry) error {
	for _, e := range entries {
		row := tableRow(e)
		for i, label := range Columns {
			if _, err := fmt.Fprintf(w, "%s: %s\n", label, row[i]); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}
