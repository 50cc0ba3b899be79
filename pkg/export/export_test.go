package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	table := Table{
		Columns: []string{"Student", "Course"},
		Rows: [][]string{
			{"Jane Doe", "Go Basics"},
			{"John Roe"},
		},
	}

	payload, err := CSV(table)
	require.NoError(t, err)
	// Short rows are padded to the column count.
	assert.Equal(t, "Student,Course\nJane Doe,Go Basics\nJohn Roe,\n", string(payload))
}

func TestCSVRequiresColumns(t *testing.T) {
	_, err := CSV(Table{})
	require.Error(t, err)
}

func TestPDF(t *testing.T) {
	table := Table{
		Title:   "Enrollment Roster",
		Columns: []string{"Student", "Course"},
		Rows:    [][]string{{"Jane Doe", "Go Basics"}},
	}

	payload, err := PDF(table)
	require.NoError(t, err)
	assert.True(t, len(payload) > 4)
	assert.Equal(t, "%PDF", string(payload[:4]))
}
