// Package export writes extracted car specifications to interchange formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/catalog-cli/internal/model"
)

// Format identifies an export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON, FormatXLSX, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (use csv, json, xlsx, or yaml)", s)
	}
}

// Write serializes specs to w in the given format.
func Write(w io.Writer, f Format, specs []model.CarSpecification) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, specs)
	case FormatJSON:
		return WriteJSON(w, specs)
	case FormatXLSX:
		return WriteXLSX(w, specs)
	case FormatYAML:
		return WriteYAML(w, specs)
	default:
		return eris.Errorf("export: unknown format %q", f)
	}
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

// columns is the fixed export column order, shared by the tabular formats.
var columns = []string{
	"manufacturer", "model_name", "grade", "price", "issue_date",
	"engine_type", "displacement", "max_power", "max_torque",
	"fuel_economy", "options",
}

// rowValues flattens one spec into the column order. Nil fields become
// empty cells; options are joined with "; " since single values may
// themselves contain commas.
func rowValues(s model.CarSpecification) []string {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	price := ""
	if s.Price != nil {
		price = strconv.FormatFloat(*s.Price, 'f', -1, 64)
	}
	return []string{
		str(s.Manufacturer), str(s.ModelName), str(s.Grade), price,
		str(s.IssueDate), str(s.EngineType), str(s.Displacement),
		str(s.MaxPower), str(s.MaxTorque), str(s.FuelEconomy),
		strings.Join(s.Options, "; "),
	}
}

// WriteCSV writes specs as RFC 4180 CSV with a header row.
func WriteCSV(w io.Writer, specs []model.CarSpecification) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, s := range specs {
		if err := cw.Write(rowValues(s)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteJSON writes specs as an indented JSON array.
func WriteJSON(w io.Writer, specs []model.CarSpecification) error {
	if specs == nil {
		specs = []model.CarSpecification{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(specs), "export: write json")
}

// WriteYAML writes specs as a YAML document.
func WriteYAML(w io.Writer, specs []model.CarSpecification) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return eris.Wrap(enc.Encode(specs), "export: write yaml")
}

// WriteXLSX writes specs as a single-sheet spreadsheet.
func WriteXLSX(w io.Writer, specs []model.CarSpecification) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("specifications")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().Value = col
	}
	for _, s := range specs {
		row := sheet.AddRow()
		for _, v := range rowValues(s) {
			row.AddCell().Value = v
		}
	}

	return eris.Wrap(file.Write(w), "export: write xlsx")
}
