package inference

import (
	"fmt"
	"strings"

	"coworker/internal/document"
)

const promptTemplate = `You are an expert document extraction assistant. Analyze the attached document (receipt, invoice, bank statement, contract or other).
Return a single JSON object with these fields:
- doc_type: one of %s
- doc_date: the document date as YYYY-MM-DD; choose the most likely date when ambiguous
- merchant: the vendor, sender or entity issuing the document
- total_amount: the total as a number
- currency: the ISO currency code (for example USD, EUR, UZS, RUB)
- summary: one sentence describing the document
- lines: array of {"description", "amount"} line items when clearly visible
- confidence: your confidence in the extraction between 0.0 and 1.0
- uncertain_fields: names of fields you are unsure about

Lower the confidence when date, amount or currency are missing or unclear.
If the document is unreadable or not a document, use doc_type "Other" and confidence 0.
Return only the JSON object.`

// BuildPrompt renders the extraction prompt for the given categories.
func BuildPrompt(categories []string) string {
	if len(categories) == 0 {
		categories = []string{
			document.TypeReceipt,
			document.TypeInvoice,
			document.TypeStatement,
			document.TypeContract,
			document.TypeOther,
		}
	}
	quoted := make([]string, 0, len(categories))
	for _, category := range categories {
		quoted = append(quoted, "'"+category+"'")
	}
	return fmt.Sprintf(promptTemplate, strings.Join(quoted, ", "))
}
