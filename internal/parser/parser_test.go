package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	csvparser "socioprep/internal/parser/csv"
	xlsxparser "socioprep/internal/parser/xlsx"
)

func TestForPath(t *testing.T) {
	_, isCSV := ForPath("data/pip.csv", Options{}).(*csvparser.Parser)
	assert.True(t, isCSV)

	_, isXLSX := ForPath("data/coords.XLSX", Options{}).(*xlsxparser.Parser)
	assert.True(t, isXLSX)

	_, isXLSX = ForPath("https://example.org/book.xlsx?raw=1", Options{}).(*xlsxparser.Parser)
	assert.True(t, isXLSX)

	_, isCSV = ForPath("https://example.org/grapher/export", Options{}).(*csvparser.Parser)
	assert.True(t, isCSV)
}
