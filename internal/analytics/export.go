package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{
	"variant_id", "name", "landing_page_id", "control",
	"visitors", "registrations", "play_starts", "completions", "cta_clicks", "calls_booked", "sales", "revenue",
	"registration_rate", "goal", "goal_rate", "goal_ci_lower", "goal_ci_upper", "confidence",
	"ad_spend", "cost_per_registration", "cost_per_sale", "roi",
}

// WriteCSV writes one row per variant followed by a totals row.
func WriteCSV(w io.Writer, a *CampaignAnalytics) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, v := range a.Variants {
		confidence := string(v.Confidence)
		if v.Baseline {
			confidence = "baseline"
		}
		row := append(countColumns(strconv.FormatInt(v.ID, 10), v.Name, v.LandingPageID, strconv.FormatBool(v.Control), v.Counts),
			formatFloat(v.Rates.Registration),
			string(a.Goal),
			formatFloat(v.GoalRate),
			formatFloat(v.GoalCILower),
			formatFloat(v.GoalCIUpper),
			confidence,
			"", "", "", "",
		)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	t := a.Totals
	row := append(countColumns("total", "", "", "", t.Counts),
		formatFloat(t.Rates.Registration),
		string(a.Goal),
		"", "", "", "",
		strconv.FormatInt(t.AdSpend, 10),
		formatOptionalFloat(t.CostPerRegistration),
		formatOptionalFloat(t.CostPerSale),
		formatOptionalInt(t.ROI),
	)
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("failed to write totals: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

func countColumns(id, name, landingPage, control string, c Counts) []string {
	return []string{
		id, name, landingPage, control,
		strconv.Itoa(c.Visitors),
		strconv.Itoa(c.Registrations),
		strconv.Itoa(c.PlayStarts),
		strconv.Itoa(c.Completions),
		strconv.Itoa(c.CTAClicks),
		strconv.Itoa(c.CallsBooked),
		strconv.Itoa(c.Sales),
		strconv.FormatInt(c.Revenue, 10),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatOptionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatOptionalInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
