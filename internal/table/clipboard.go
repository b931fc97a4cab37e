package table

import (
	"strings"
)

// ParseClipboard splits a copied block of cells into rows and columns. Cells
// are separated by tabs and rows by newlines. A cell starting with a double
// quote may span tabs and newlines until its closing quote, with "" standing
// for a literal quote; a quote that is never closed is taken literally.
// CRLF and CR line endings are accepted and one trailing newline is ignored.
// Rows may have different lengths.
func ParseClipboard(text string) [][]string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")

	var grid [][]string
	var row []string
	pos := 0
	for {
		cell, next, sep := readCell(text, pos)
		row = append(row, cell)
		switch sep {
		case sepNone:
			return append(grid, row)
		case sepRow:
			grid = append(grid, row)
			row = nil
		}
		pos = next
	}
}

type separator int

const (
	sepNone separator = iota
	sepCell
	sepRow
)

// readCell reads one cell starting at pos and returns the position after
// its separator.
func readCell(text string, pos int) (string, int, separator) {
	if pos < len(text) && text[pos] == '"' {
		if cell, end, ok := readQuoted(text, pos+1); ok {
			return cell, end + 1, separatorAt(text, end)
		}
	}
	end := pos
	for end < len(text) && text[end] != '\t' && text[end] != '\n' {
		end++
	}
	return text[pos:end], end + 1, separatorAt(text, end)
}

// readQuoted reads a quoted cell body starting after the opening quote. It
// returns the position just past the closing quote, which must be followed
// by a separator or the end of text.
func readQuoted(text string, pos int) (string, int, bool) {
	var b strings.Builder
	for {
		i := strings.IndexByte(text[pos:], '"')
		if i < 0 {
			return "", 0, false
		}
		q := pos + i
		b.WriteString(text[pos:q])
		if q+1 < len(text) && text[q+1] == '"' {
			b.WriteByte('"')
			pos = q + 2
			continue
		}
		end := q + 1
		if end < len(text) && text[end] != '\t' && text[end] != '\n' {
			return "", 0, false
		}
		return b.String(), end, true
	}
}

func separatorAt(text string, i int) separator {
	if i >= len(text) {
		return sepNone
	}
	if text[i] == '\t' {
		return sepCell
	}
	return sepRow
}

// FormatClipboard renders a block of cells in the form ParseClipboard reads,
// quoting cells that contain separators or start with a quote.
func FormatClipboard(grid [][]string) string {
	var b strings.Builder
	for _, row := range grid {
		for j, cell := range row {
			if j > 0 {
				b.WriteByte('\t')
			}
			if strings.ContainsAny(cell, "\t\n\r") || strings.HasPrefix(cell, `"`) {
				b.WriteByte('"')
				b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
				b.WriteByte('"')
				continue
			}
			b.WriteString(cell)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
