package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// InsightRow is the canonical, normalized shape of one reporting row. Parent
// identifiers are populated only at and below the row's level; the legacy
// storage schema substitutes sentinel placeholders at write time.
type InsightRow struct {
	DateStart time.Time `json:"date_start"`
	DateStop  time.Time `json:"date_stop"`

	EntityID   string `json:"entity_id"`
	AccountID  string `json:"account_id,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
	AdsetID    string `json:"adset_id,omitempty"`
	AdID       string `json:"ad_id,omitempty"`

	AccountName  string `json:"account_name,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
	AdsetName    string `json:"adset_name,omitempty"`
	AdName       string `json:"ad_name,omitempty"`

	// Dimension name -> value; nil values mean the dimension was requested
	// but absent on this row.
	Breakdowns map[string]*string `json:"breakdowns,omitempty"`

	Spend            float64 `json:"spend"`
	Impressions      int64   `json:"impressions"`
	Clicks           int64   `json:"clicks"`
	InlineLinkClicks int64   `json:"inline_link_clicks"`
	UniqueClicks     int64   `json:"unique_clicks"`
	Reach            int64   `json:"reach"`
	Frequency        float64 `json:"frequency"`
	CTR              float64 `json:"ctr"`
	CPC              float64 `json:"cpc"`
	CPM              float64 `json:"cpm"`

	// Derived action counts, extracted from the raw actions list by
	// substring match on action_type. Never summed across matches.
	Purchases         float64 `json:"purchases"`
	AddsToCart        float64 `json:"adds_to_cart"`
	InitiatedCheckout float64 `json:"initiated_checkout"`
	Leads             float64 `json:"leads"`
	Registrations     float64 `json:"registrations"`
	LandingPageViews  float64 `json:"landing_page_views"`
	VideoViews        float64 `json:"video_views"`
	PostEngagement    float64 `json:"post_engagement"`
	LinkClickActions  float64 `json:"link_click_actions"`

	PurchaseValue float64 `json:"purchase_value"`
	LeadValue     float64 `json:"lead_value"`

	CampaignBudget  float64 `json:"campaign_budget"`
	AdsetBudget     float64 `json:"adset_budget"`
	Objective       string  `json:"objective,omitempty"`
	EffectiveStatus string  `json:"effective_status,omitempty"`
}

// UpsertContext carries the addressing keys used to derive the storage key
// for a batch of rows. It is never persisted itself.
type UpsertContext struct {
	TenantID          string
	AccountID         string
	Level             Level
	ActionReportTime  ActionReportTime
	AttributionWindow AttributionWindow
	BreakdownsKey     string
	BreakdownKeys     []string
}

// HashBreakdowns produces the stable key component for a breakdown mapping.
// Nil-valued keys are excluded before hashing and key order never matters,
// so logically identical mappings always hash the same. Part of the
// extended-schema idempotency key.
func HashBreakdowns(breakdowns map[string]*string) string {
	keys := make([]string, 0, len(breakdowns))
	for k, v := range breakdowns {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(*breakdowns[k])
	}
	return fmt.Sprintf("%016x", xxh3.HashString(sb.String()))
}

// ChunkRange is one calendar-month-aligned slice of a backfill span.
type ChunkRange struct {
	Since time.Time
	Until time.Time
}
