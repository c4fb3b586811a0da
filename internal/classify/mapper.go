package classify

import (
	"strings"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

// fieldSpec binds one canonical field to its synonym keywords in
// priority order. The first keyword that matches any column wins.
type fieldSpec struct {
	field    string
	keywords []string
}

// Canonical import schemas. Order inside each keyword list is the match
// priority; order of specs is the canonical field order of the schema.
var clientSchema = []fieldSpec{
	{"name", []string{"nom", "name", "client", "customer"}},
	{"email", []string{"email", "mail", "e-mail"}},
	{"phone", []string{"téléphone", "phone", "tel", "mobile"}},
	{"address", []string{"adresse", "address", "rue", "street"}},
	{"city", []string{"ville", "city", "localité"}},
	{"postal_code", []string{"code postal", "postal code", "zip", "cp"}},
	{"country", []string{"pays", "country"}},
	{"company", []string{"société", "company", "entreprise", "business"}},
}

var productSchema = []fieldSpec{
	{"name", []string{"nom", "name", "produit", "product", "article"}},
	{"reference", []string{"référence", "reference", "ref", "sku", "code"}},
	{"description", []string{"description", "desc", "détail"}},
	{"price", []string{"prix", "price", "tarif", "cost", "montant"}},
	{"vat_rate", []string{"tva", "vat", "taxe", "tax"}},
	{"category", []string{"catégorie", "category", "type", "famille"}},
	{"unit", []string{"unité", "unit", "u", "mesure"}},
}

var transactionSchema = []fieldSpec{
	{"date", []string{"date", "jour", "day"}},
	{"amount", []string{"montant", "amount", "prix", "price", "total"}},
	{"description", []string{"description", "libellé", "label", "détail"}},
	{"type", []string{"type", "catégorie", "category"}},
	{"reference", []string{"référence", "reference", "ref", "numéro"}},
	{"client", []string{"client", "customer", "nom"}},
}

func schemaFor(dataType string) []fieldSpec {
	switch dataType {
	case models.DataTypeClients:
		return clientSchema
	case models.DataTypeProducts:
		return productSchema
	case models.DataTypeTransactions:
		return transactionSchema
	}
	return nil
}

// MapColumns maps each canonical field of the schema for dataType to the
// first raw column containing one of its keywords. A raw column may be
// claimed by more than one canonical field; no exclusivity is enforced.
// Unmatched fields map to the empty string. Returns nil for generic.
func MapColumns(dataType string, columns []string) map[string]string {
	schema := schemaFor(dataType)
	if schema == nil {
		return nil
	}
	lower := lowerAll(columns)

	mapping := make(map[string]string, len(schema))
	for _, spec := range schema {
		mapping[spec.field] = ""
		for _, kw := range spec.keywords {
			for i, col := range lower {
				if strings.Contains(col, kw) {
					mapping[spec.field] = columns[i]
					break
				}
			}
			if mapping[spec.field] != "" {
				break
			}
		}
	}
	return mapping
}

// MapRecords applies a column mapping to row data, keeping only rows
// that yield at least one mapped value. Rows are maps keyed by raw
// column name with blank cells already normalized to empty strings.
func MapRecords(dataType string, columns []string, rows []map[string]string) *models.MappedRecords {
	mapping := MapColumns(dataType, columns)
	if mapping == nil {
		return nil
	}

	var records []map[string]string
	for _, row := range rows {
		rec := map[string]string{}
		for field, col := range mapping {
			if col == "" {
				continue
			}
			if v := strings.TrimSpace(row[col]); v != "" {
				rec[field] = v
			}
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}

	fields := make([]string, 0, len(mapping))
	for _, spec := range schemaFor(dataType) {
		fields = append(fields, spec.field)
	}

	return &models.MappedRecords{
		ColumnMapping:  mapping,
		DetectedFields: fields,
		Records:        records,
		TotalCount:     len(records),
	}
}
