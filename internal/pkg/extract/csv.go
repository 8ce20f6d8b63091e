package extract

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// csvText renders each data row as "header: value" lines, rows separated by
// a blank line. The first record is the header.
func csvText(r io.Reader) (string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		for i, value := range record {
			key := ""
			if i < len(header) {
				key = strings.TrimSpace(header[i])
			}
			if i > 0 {
				b.WriteByte('\n')
			}
			if key != "" {
				b.WriteString(key)
				b.WriteString(": ")
			}
			b.WriteString(strings.TrimSpace(value))
		}
	}
	return b.String(), nil
}
