// Package classify assigns a semantic data type to tabular documents
// from their column names and maps raw columns onto canonical import
// schemas. All functions are pure; keyword matching is substring
// containment over lower-cased names, in French and English.
package classify

import (
	"strings"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

var clientKeywords = []string{
	"nom", "name", "client", "customer", "société", "company",
	"email", "mail", "téléphone", "phone", "adresse", "address",
}

var productKeywords = []string{
	"produit", "product", "article", "item", "référence", "ref",
	"prix", "price", "tarif", "cost", "tva", "vat",
}

var transactionKeywords = []string{
	"date", "montant", "amount", "débit", "crédit", "debit", "credit",
	"facture", "invoice", "transaction", "opération",
}

// minScore is the number of keyword hits a category needs to claim a table
const minScore = 2

// DetectDataType scores column names against the three keyword families
// and returns the first category reaching the threshold, in fixed
// priority order clients > products > transactions. Anything else is
// generic.
func DetectDataType(columns []string) string {
	lower := lowerAll(columns)

	if score(lower, clientKeywords) >= minScore {
		return models.DataTypeClients
	}
	if score(lower, productKeywords) >= minScore {
		return models.DataTypeProducts
	}
	if score(lower, transactionKeywords) >= minScore {
		return models.DataTypeTransactions
	}
	return models.DataTypeGeneric
}

// score counts keywords that match at least one column. A keyword hitting
// several columns still counts once.
func score(lowerColumns, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		for _, col := range lowerColumns {
			if strings.Contains(col, kw) {
				n++
				break
			}
		}
	}
	return n
}

func lowerAll(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = strings.ToLower(c)
	}
	return out
}
