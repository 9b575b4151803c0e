package usecase

import (
	"strconv"
	"strings"
	"time"

	"adsync/internal/domain"
)

// Action-type substrings used to derive per-conversion counts from the raw
// actions list. The first matching entry wins; matches are never summed.
const (
	actionPurchase         = "purchase"
	actionAddToCart        = "add_to_cart"
	actionInitiateCheckout = "initiate_checkout"
	actionLead             = "lead"
	actionRegistration     = "complete_registration"
	actionLandingPageView  = "landing_page_view"
	actionVideoView        = "video_view"
	actionPostEngagement   = "post_engagement"
	actionLinkClick        = "link_click"
)

// NormalizeInsightRow maps one raw result record into the canonical row
// shape. It returns nil when the record carries no identifier for the
// combination's level; such rows are dropped rather than stored as null.
func NormalizeInsightRow(raw map[string]any, combo domain.MatrixCombination) *domain.InsightRow {
	entityID := rawString(raw, entityIDField(combo.Level))
	if entityID == "" {
		return nil
	}

	row := &domain.InsightRow{
		DateStart: rawDate(raw, "date_start"),
		DateStop:  rawDate(raw, "date_stop"),

		EntityID:  entityID,
		AccountID: rawString(raw, "account_id"),

		Spend:            rawFloat(raw, "spend"),
		Impressions:      rawInt(raw, "impressions"),
		Clicks:           rawInt(raw, "clicks"),
		InlineLinkClicks: rawInt(raw, "inline_link_clicks"),
		UniqueClicks:     rawInt(raw, "unique_clicks"),
		Reach:            rawInt(raw, "reach"),
		Frequency:        rawFloat(raw, "frequency"),
		CTR:              rawFloat(raw, "ctr"),
		CPC:              rawFloat(raw, "cpc"),
		CPM:              rawFloat(raw, "cpm"),

		CampaignBudget:  rawFloat(raw, "campaign_daily_budget"),
		AdsetBudget:     rawFloat(raw, "adset_daily_budget"),
		Objective:       rawString(raw, "objective"),
		EffectiveStatus: rawString(raw, "effective_status"),
	}

	// Parent identifiers exist only at and below the row's level.
	switch combo.Level {
	case domain.LevelAd:
		row.AdID = rawString(raw, "ad_id")
		row.AdName = rawString(raw, "ad_name")
		fallthrough
	case domain.LevelAdset:
		row.AdsetID = rawString(raw, "adset_id")
		row.AdsetName = rawString(raw, "adset_name")
		fallthrough
	case domain.LevelCampaign:
		row.CampaignID = rawString(raw, "campaign_id")
		row.CampaignName = rawString(raw, "campaign_name")
		fallthrough
	case domain.LevelAccount:
		row.AccountName = rawString(raw, "account_name")
	}

	actions := rawActionList(raw, "actions")
	row.Purchases = actionValue(actions, actionPurchase)
	row.AddsToCart = actionValue(actions, actionAddToCart)
	row.InitiatedCheckout = actionValue(actions, actionInitiateCheckout)
	row.Leads = actionValue(actions, actionLead)
	row.Registrations = actionValue(actions, actionRegistration)
	row.LandingPageViews = actionValue(actions, actionLandingPageView)
	row.VideoViews = actionValue(actions, actionVideoView)
	row.PostEngagement = actionValue(actions, actionPostEngagement)
	row.LinkClickActions = actionValue(actions, actionLinkClick)

	values := rawActionList(raw, "action_values")
	row.PurchaseValue = actionValue(values, actionPurchase)
	row.LeadValue = actionValue(values, actionLead)

	row.Breakdowns = extractBreakdowns(raw, combo.Breakdowns)

	return row
}

func entityIDField(level domain.Level) string {
	switch level {
	case domain.LevelCampaign:
		return "campaign_id"
	case domain.LevelAdset:
		return "adset_id"
	case domain.LevelAd:
		return "ad_id"
	default:
		return "account_id"
	}
}

// extractBreakdowns pulls the requested dimension values off the raw record.
// Requested dimensions missing from the record map to nil so the stored
// shape still reflects what was asked for.
func extractBreakdowns(raw map[string]any, breakdowns string) map[string]*string {
	if breakdowns == "" {
		return nil
	}
	out := make(map[string]*string)
	for _, name := range strings.Split(breakdowns, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if v := rawString(raw, name); v != "" {
			val := v
			out[name] = &val
		} else {
			out[name] = nil
		}
	}
	return out
}

type rawAction struct {
	actionType string
	value      float64
}

func rawActionList(raw map[string]any, field string) []rawAction {
	list, ok := raw[field].([]any)
	if !ok {
		return nil
	}
	actions := make([]rawAction, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		a := rawAction{actionType: rawString(entry, "action_type")}
		// Report files carry either "value" or "count" depending on the
		// field requested.
		a.value = rawFloat(entry, "value")
		if a.value == 0 {
			a.value = rawFloat(entry, "count")
		}
		actions = append(actions, a)
	}
	return actions
}

// actionValue returns the value of the first action whose type contains
// substr, case-insensitively. Summing across matches would double-count
// rolled-up action types (e.g. "purchase" and "offsite_conversion.fb_pixel_purchase").
func actionValue(actions []rawAction, substr string) float64 {
	for _, a := range actions {
		if strings.Contains(strings.ToLower(a.actionType), substr) {
			return a.value
		}
	}
	return 0
}

func rawString(raw map[string]any, field string) string {
	switch v := raw[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// rawFloat tolerates the API's habit of sending numerics as strings.
func rawFloat(raw map[string]any, field string) float64 {
	switch v := raw[field].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func rawInt(raw map[string]any, field string) int64 {
	return int64(rawFloat(raw, field))
}

func rawDate(raw map[string]any, field string) time.Time {
	s := rawString(raw, field)
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
