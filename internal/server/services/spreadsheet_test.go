package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kamikazebr/therapy-records/pkg/models"
)

func TestWriteRecordsXLSX(t *testing.T) {
	columns, err := ParseColumns([]string{models.FieldStartDate, models.FieldMask})
	require.NoError(t, err)

	data, err := WriteRecordsXLSX(sampleRecords()[:2], columns)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{recordsSheetName}, f.GetSheetList())

	rows, err := f.GetRows(recordsSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", models.FieldStartDate, models.FieldMask}, rows[0])
	assert.Equal(t, []string{"jan", "10/01/2024", "Nasal"}, rows[1])
	assert.Equal(t, []string{"undated", "", "pillow"}, rows[2])
}

func TestWriteRecordsXLSX_AllColumnsHeaderOnly(t *testing.T) {
	data, err := WriteRecordsXLSX(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(recordsSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(models.FieldNames)+1)
}
