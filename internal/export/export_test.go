package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/catalog-cli/internal/model"
)

func exportSpecs() []model.CarSpecification {
	return []model.CarSpecification{
		{
			ID:           "r1",
			Manufacturer: model.StrPtr("Honda"),
			ModelName:    model.StrPtr("Fit"),
			Grade:        model.StrPtr(`e:HEV "HOME"`),
			Price:        model.FloatPtr(2186800),
			FuelEconomy:  model.StrPtr("28.6 km/L"),
			Options:      []string{"sunroof", "9-inch navi, ETC"},
		},
		{
			ID:           "r2",
			Manufacturer: model.StrPtr("Honda"),
			ModelName:    model.StrPtr("Fit"),
			Grade:        model.StrPtr("BASIC"),
			Price:        model.FloatPtr(1717100),
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportSpecs()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, columns, rows[0])
	assert.Equal(t, "Honda", rows[1][0])
	assert.Equal(t, `e:HEV "HOME"`, rows[1][2], "quotes survive CSV round trip")
	assert.Equal(t, "2186800", rows[1][3])
	assert.Equal(t, "sunroof; 9-inch navi, ETC", rows[1][10])
	assert.Equal(t, "", rows[2][9], "nil fields export as empty cells")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, exportSpecs()))

	var decoded []model.CarSpecification
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "BASIC", *decoded[1].Grade)
	assert.Nil(t, decoded[1].FuelEconomy)
}

func TestWriteJSON_NilSpecs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.JSONEq(t, "[]", buf.String(), "nil exports as an empty array, not null")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, exportSpecs()))
	assert.Contains(t, buf.String(), "model_name: Fit")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, exportSpecs()))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "specifications", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "manufacturer", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "2186800", sheet.Rows[1].Cells[3].Value)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("pdf")
	require.Error(t, err)
}

func TestWrite_Dispatch(t *testing.T) {
	for _, f := range []Format{FormatCSV, FormatJSON, FormatXLSX, FormatYAML} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, f, exportSpecs()), string(f))
		assert.NotEmpty(t, buf.Bytes(), string(f))
		assert.NotEmpty(t, f.ContentType())
	}
}
