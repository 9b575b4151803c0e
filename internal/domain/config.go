package domain

// Entity granularity of a reporting row.
type Level string

const (
	LevelAccount  Level = "account"
	LevelCampaign Level = "campaign"
	LevelAdset    Level = "adset"
	LevelAd       Level = "ad"
)

// How a conversion is time-attributed by the reporting API.
type ActionReportTime string

const (
	ActionReportTimeImpression ActionReportTime = "impression"
	ActionReportTimeConversion ActionReportTime = "conversion"
)

// Lookback window used to credit a conversion to a click or view.
type AttributionWindow string

const (
	AttributionWindow1dClick AttributionWindow = "1d_click"
	AttributionWindow7dClick AttributionWindow = "7d_click"
	AttributionWindow1dView  AttributionWindow = "1d_view"
)

// Named breakdown presets. Each key maps to the rendered breakdown string
// sent upstream; "none" deliberately maps to the empty string.
var BreakdownPresets = map[string]string{
	"none":       "",
	"age_gender": "age,gender",
	"country":    "country",
	"region":     "region",
	"platform":   "publisher_platform,platform_position",
	"device":     "impression_device",
}

// Default dimension sets, in the canonical enumeration order.
var (
	DefaultLevels = []Level{LevelAccount, LevelCampaign, LevelAdset, LevelAd}

	DefaultBreakdownKeys = []string{"none", "age_gender", "country", "region", "platform", "device"}

	DefaultActionReportTimes = []ActionReportTime{ActionReportTimeImpression, ActionReportTimeConversion}

	DefaultAttributionWindows = []AttributionWindow{AttributionWindow1dClick, AttributionWindow7dClick, AttributionWindow1dView}
)

// RunnerConfig is the resolved, always well-formed set of reporting
// dimensions for one backfill run. Every slice is non-empty.
type RunnerConfig struct {
	Levels             []Level
	BreakdownKeys      []string
	ActionReportTimes  []ActionReportTime
	AttributionWindows []AttributionWindow
}

// ConfigOverrides are optional operator-supplied dimension filters. Unknown
// values are dropped silently; a filter that matches nothing falls back to
// the full default set rather than skipping data.
type ConfigOverrides struct {
	Levels             []string
	BreakdownKeys      []string
	ActionReportTimes  []string
	AttributionWindows []string
}

// MatrixCombination is one concrete fetch tuple from the cartesian product
// over RunnerConfig's four dimension sets.
type MatrixCombination struct {
	Level             Level
	BreakdownKey      string
	Breakdowns        string // rendered dimension string, "" for the none preset
	ActionReportTime  ActionReportTime
	AttributionWindow AttributionWindow
}
