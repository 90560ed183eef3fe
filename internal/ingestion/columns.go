package ingestion

import (
	"strings"

	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/numparse"
)

// Field is a canonical column name
type Field string

const (
	FieldDate   Field = "date"
	FieldOpen   Field = "open"
	FieldHigh   Field = "high"
	FieldLow    Field = "low"
	FieldClose  Field = "close"
	FieldVolume Field = "volume"
	FieldChange Field = "change"
)

// CanonicalOrder is the positional layout assumed for files without a header
var CanonicalOrder = []Field{FieldDate, FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldChange}

// RequiredFields must all be resolved before any row is processed
var RequiredFields = []Field{FieldDate, FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

// Synonyms maps every accepted header label to its canonical field.
// Matching is exact and case-sensitive after trimming whitespace.
var Synonyms = map[string]Field{
	"Date":  FieldDate,
	"Tarih": FieldDate,

	"Open":   FieldOpen,
	"Açılış": FieldOpen,

	"High":   FieldHigh,
	"Yüksek": FieldHigh,

	"Low":   FieldLow,
	"Düşük": FieldLow,

	"Close":   FieldClose,
	"Price":   FieldClose,
	"Kapanış": FieldClose,
	"Şimdi":   FieldClose,
	"Son":     FieldClose,

	"Volume": FieldVolume,
	"Vol.":   FieldVolume,
	"Hacim":  FieldVolume,
	"Hac.":   FieldVolume,

	"Change %":  FieldChange,
	"Change":    FieldChange,
	"Fark %":    FieldChange,
	"Değişim %": FieldChange,
}

// HeaderMode tells the normalizer whether the first row is a header
type HeaderMode string

const (
	HeaderAuto    HeaderMode = "auto"
	HeaderPresent HeaderMode = "present"
	HeaderAbsent  HeaderMode = "absent"
)

// ParseHeaderMode validates a textual header mode, defaulting to auto
func ParseHeaderMode(s string) (HeaderMode, error) {
	switch HeaderMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", HeaderAuto:
		return HeaderAuto, nil
	case HeaderPresent:
		return HeaderPresent, nil
	case HeaderAbsent:
		return HeaderAbsent, nil
	}
	return "", apperrors.NewAppValidationError("header mode must be one of auto, present, absent")
}

// ColumnMap holds the resolved cell index of each canonical field
type ColumnMap map[Field]int

// Has reports whether f was resolved
func (m ColumnMap) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// Cell returns the cell for f in row, or "" when the row is too short
func (m ColumnMap) Cell(row []string, f Field) string {
	i, ok := m[f]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// ResolveColumns maps header labels to canonical fields. The first matching
// column wins. Missing required fields yield a SchemaError naming all of them.
func ResolveColumns(header []string) (ColumnMap, error) {
	cols := make(ColumnMap, len(CanonicalOrder))
	for i, label := range header {
		label = strings.TrimSpace(strings.TrimPrefix(label, "\ufeff"))
		if f, ok := Synonyms[label]; ok && !cols.Has(f) {
			cols[f] = i
		}
	}

	if missing := cols.missing(); len(missing) > 0 {
		return nil, &apperrors.SchemaError{Missing: missing, Header: header}
	}
	return cols, nil
}

// positionalColumns assumes CanonicalOrder for a row of the given width
func positionalColumns(width int) (ColumnMap, error) {
	cols := make(ColumnMap, len(CanonicalOrder))
	for i, f := range CanonicalOrder {
		if i < width {
			cols[f] = i
		}
	}
	if missing := cols.missing(); len(missing) > 0 {
		return nil, &apperrors.SchemaError{Missing: missing}
	}
	return cols, nil
}

func (m ColumnMap) missing() []string {
	var missing []string
	for _, f := range RequiredFields {
		if !m.Has(f) {
			missing = append(missing, string(f))
		}
	}
	return missing
}

// resolveLayout decides the column map and the number of header rows to skip
func resolveLayout(first []string, mode HeaderMode, dateLayout string) (ColumnMap, int, error) {
	switch mode {
	case HeaderPresent:
		cols, err := ResolveColumns(first)
		return cols, 1, err
	case HeaderAbsent:
		cols, err := positionalColumns(len(first))
		return cols, 0, err
	}

	cols, err := ResolveColumns(first)
	if err == nil {
		return cols, 1, nil
	}
	if len(first) > 0 {
		if _, dateErr := numparse.ParseDate(first[0], dateLayout); dateErr == nil {
			cols, posErr := positionalColumns(len(first))
			return cols, 0, posErr
		}
	}
	return nil, 0, err
}
