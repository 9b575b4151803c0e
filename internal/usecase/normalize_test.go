package usecase

import (
	"testing"

	"adsync/internal/domain"
)

func campaignCombo() domain.MatrixCombination {
	return domain.MatrixCombination{
		Level:             domain.LevelCampaign,
		BreakdownKey:      "none",
		ActionReportTime:  domain.ActionReportTimeImpression,
		AttributionWindow: domain.AttributionWindow7dClick,
	}
}

func TestNormalizeDropsRowWithoutEntityID(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"date_start": "2025-01-01",
		"date_stop":  "2025-01-01",
		"account_id": "act_1",
		"spend":      "12.50",
	}

	if row := NormalizeInsightRow(raw, campaignCombo()); row != nil {
		t.Fatalf("row without campaign_id normalized to %+v; want nil", row)
	}

	// The same record is valid at account level.
	combo := campaignCombo()
	combo.Level = domain.LevelAccount
	row := NormalizeInsightRow(raw, combo)
	if row == nil {
		t.Fatal("account-level row dropped")
	}
	if row.EntityID != "act_1" {
		t.Fatalf("entity id = %q; want act_1", row.EntityID)
	}
}

func TestNormalizeExtractsActions(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"date_start":  "2025-01-03",
		"date_stop":   "2025-01-03",
		"campaign_id": "c_9",
		"spend":       "100.25",
		"impressions": "5000",
		"clicks":      float64(120),
		"actions": []any{
			map[string]any{"action_type": "link_click", "value": "118"},
			map[string]any{"action_type": "offsite_conversion.fb_pixel_purchase", "value": "7"},
			map[string]any{"action_type": "purchase", "value": "99"},
			map[string]any{"action_type": "lead", "count": float64(3)},
		},
		"action_values": []any{
			map[string]any{"action_type": "purchase", "value": "421.90"},
		},
	}

	row := NormalizeInsightRow(raw, campaignCombo())
	if row == nil {
		t.Fatal("row dropped")
	}

	// First substring match wins; the rolled-up "purchase" entry later in
	// the list must not be summed in.
	if row.Purchases != 7 {
		t.Fatalf("purchases = %v; want 7", row.Purchases)
	}
	if row.Leads != 3 {
		t.Fatalf("leads = %v; want 3", row.Leads)
	}
	if row.PurchaseValue != 421.90 {
		t.Fatalf("purchase value = %v; want 421.90", row.PurchaseValue)
	}
	if row.Spend != 100.25 {
		t.Fatalf("spend = %v; want 100.25", row.Spend)
	}
	if row.Impressions != 5000 {
		t.Fatalf("impressions = %v; want 5000", row.Impressions)
	}
	if row.Clicks != 120 {
		t.Fatalf("clicks = %v; want 120", row.Clicks)
	}
	if row.DateStart.Format("2006-01-02") != "2025-01-03" {
		t.Fatalf("date start = %v", row.DateStart)
	}
}

func TestNormalizeActionTypeMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"campaign_id": "c_1",
		"actions": []any{
			map[string]any{"action_type": "Offsite_Conversion.FB_Pixel_Purchase", "value": "4"},
		},
	}

	row := NormalizeInsightRow(raw, campaignCombo())
	if row == nil {
		t.Fatal("row dropped")
	}
	if row.Purchases != 4 {
		t.Fatalf("purchases = %v; want 4", row.Purchases)
	}
}

func TestNormalizeBreakdowns(t *testing.T) {
	t.Parallel()

	combo := campaignCombo()
	combo.BreakdownKey = "age_gender"
	combo.Breakdowns = "age,gender"

	raw := map[string]any{
		"campaign_id": "c_1",
		"age":         "25-34",
		// gender requested but absent from the record
	}

	row := NormalizeInsightRow(raw, combo)
	if row == nil {
		t.Fatal("row dropped")
	}
	if got := row.Breakdowns["age"]; got == nil || *got != "25-34" {
		t.Fatalf("age breakdown = %v", got)
	}
	if got, ok := row.Breakdowns["gender"]; !ok || got != nil {
		t.Fatalf("missing dimension should map to nil, got %v (present=%v)", got, ok)
	}

	// The no-breakdown preset stores no mapping at all.
	plain := NormalizeInsightRow(raw, campaignCombo())
	if plain.Breakdowns != nil {
		t.Fatalf("breakdowns = %v; want nil", plain.Breakdowns)
	}
}

func TestNormalizeParentIDsByLevel(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"account_id":  "act_1",
		"campaign_id": "c_1",
		"adset_id":    "as_1",
		"ad_id":       "ad_1",
		"ad_name":     "blue banner",
	}

	combo := campaignCombo()
	combo.Level = domain.LevelAd
	row := NormalizeInsightRow(raw, combo)
	if row == nil {
		t.Fatal("row dropped")
	}
	if row.EntityID != "ad_1" || row.AdsetID != "as_1" || row.CampaignID != "c_1" || row.AccountID != "act_1" {
		t.Fatalf("hierarchy not populated: %+v", row)
	}

	// Campaign level must not surface identifiers below its own level.
	row = NormalizeInsightRow(raw, campaignCombo())
	if row.AdID != "" || row.AdsetID != "" {
		t.Fatalf("campaign-level row leaked lower identifiers: %+v", row)
	}
}

func TestNormalizeTolerantNumericParsing(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"campaign_id": "c_1",
		"spend":       "not-a-number",
		"impressions": nil,
		"frequency":   1.81,
	}

	row := NormalizeInsightRow(raw, campaignCombo())
	if row == nil {
		t.Fatal("row dropped")
	}
	if row.Spend != 0 || row.Impressions != 0 {
		t.Fatalf("garbage numerics not zeroed: %+v", row)
	}
	if row.Frequency != 1.81 {
		t.Fatalf("frequency = %v; want 1.81", row.Frequency)
	}
}
