package sheets

import (
	"errors"
	"fmt"
	"strings"

	"jdcportal/internal/domain/installation"
)

// ErrMalformedSheet is returned when the header row is missing or has no client code column.
var ErrMalformedSheet = errors.New("malformed installation sheet")

type column int

const (
	colCode column = iota
	colName
	colAddress
	colCity
	colPhone
	colCommercial
	colInstallDate
	colComment
	colStatus
)

var headerAliases = map[string]column{
	"code client":         colCode,
	"code":                colCode,
	"codeclient":          colCode,
	"n client":            colCode,
	"raison sociale":      colName,
	"nom":                 colName,
	"client":              colName,
	"adresse":             colAddress,
	"ville":               colCity,
	"telephone":           colPhone,
	"tel":                 colPhone,
	"commercial":          colCommercial,
	"date installation":   colInstallDate,
	"date install":        colInstallDate,
	"date d'installation": colInstallDate,
	"date":                colInstallDate,
	"commentaire":         colComment,
	"commentaires":        colComment,
	"statut":              colStatus,
	"status":              colStatus,
}

// ParseInstallations turns a sheet grid into installations of sector, in row
// order. Rows with a blank client code are dropped; duplicates are kept so the
// caller decides which row wins.
func ParseInstallations(sector string, rows [][]string) ([]installation.Installation, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrMalformedSheet)
	}

	index := map[column]int{}
	for i, h := range rows[0] {
		if col, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, seen := index[col]; !seen {
				index[col] = i
			}
		}
	}
	if _, ok := index[colCode]; !ok {
		return nil, fmt.Errorf("%w: no client code column", ErrMalformedSheet)
	}

	out := make([]installation.Installation, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cell := func(c column) string {
			i, ok := index[c]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		code := cell(colCode)
		if code == "" {
			continue
		}
		out = append(out, installation.Installation{
			Sector:      sector,
			CodeClient:  code,
			Name:        cell(colName),
			Address:     cell(colAddress),
			City:        cell(colCity),
			Phone:       cell(colPhone),
			Commercial:  cell(colCommercial),
			InstallDate: cell(colInstallDate),
			Comment:     cell(colComment),
			Status:      installation.NormalizeStatus(cell(colStatus)),
		})
	}
	return out, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(
		"é", "e", "è", "e", "ê", "e", "à", "a", "ô", "o",
		"_", " ", "-", " ", ".", " ", "°", " ",
	).Replace(h)
	return strings.Join(strings.Fields(h), " ")
}
