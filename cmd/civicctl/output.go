package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Jwl06/civicledger360/models"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeViolations(w io.Writer, list []models.Violation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tSTATUS\tTYPE\tREPORTER\tRISK\tSUBMITTED")
	for _, v := range list {
		risk := "-"
		if v.AIAnalysis != nil {
			risk = fmt.Sprintf("%s (%.2f)", v.AIAnalysis.RiskLevel, v.AIAnalysis.Confidence)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.Source, v.Status, v.ViolationType, v.Reporter, risk,
			v.SubmittedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
