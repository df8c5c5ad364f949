package report

// SloTier bounds the p90 tail latencies a run must meet for its throughput to
// count as goodput. Latencies are in milliseconds; time per output token is
// measured by the inter-token latency.
type SloTier struct {
	Name   string
	TtftMs float64
	TpotMs float64
}

// SloTiers ordered strictest first.
var SloTiers = []SloTier{
	{Name: "ultra_strict", TtftMs: 50, TpotMs: 8},
	{Name: "strict", TtftMs: 100, TpotMs: 12},
	{Name: "moderate", TtftMs: 200, TpotMs: 15},
	{Name: "loose", TtftMs: 400, TpotMs: 20},
	{Name: "very_loose", TtftMs: 800, TpotMs: 30},
}

// Column keys the analysis reads from aggregated rows.
const (
	requestThroughputKey = "request_throughput_avg"
	tokenThroughputKey   = "output_token_throughput_avg"
	tokenPerUserKey      = "output_token_throughput_per_user_avg"
	ttftP90Key           = "time_to_first_token_p90"
	itlP90Key            = "inter_token_latency_p90"
)

// Met reports whether a row's p90 tail latencies satisfy the tier. p90 under
// the bound means at least 90% of requests did. A row missing either latency
// never satisfies it.
func (tier SloTier) Met(row Row) bool {
	ttft, ok := row.Metrics[ttftP90Key]
	if !ok {
		return false
	}
	itl, ok := row.Metrics[itlP90Key]
	if !ok {
		return false
	}
	return ttft < tier.TtftMs && itl < tier.TpotMs
}

// GoodputPoint is one row evaluated against one tier. The goodput figures are
// the row's throughputs when the tier is met and zero otherwise.
type GoodputPoint struct {
	Concurrency         int
	Met                 bool
	RequestGoodput      float64
	TokenGoodput        float64
	TokenGoodputPerUser float64
	TtftP90             float64
	ItlP90              float64
}

// TierResult is one tier evaluated over the whole sweep. Points are
// index-aligned with the report's rows.
type TierResult struct {
	Tier   SloTier
	Points []GoodputPoint
	// Best is the point with the highest request goodput; nil when no row
	// met the tier.
	Best *GoodputPoint
}

// BestPoint pins the row with the highest raw request throughput, ignoring
// latency entirely.
type BestPoint struct {
	Concurrency int
	Throughput  float64
}

// Analysis is the goodput summary over an aggregated report.
type Analysis struct {
	// BestThroughput is nil when no row carries a throughput cell.
	BestThroughput *BestPoint
	Tiers          []TierResult
}

// Analyze evaluates every report row against every service tier. Ties on
// goodput keep the earlier (lower-concurrency) point.
func Analyze(report *Report) *Analysis {
	analysis := &Analysis{}
	for _, row := range report.Rows {
		throughput, ok := row.Metrics[requestThroughputKey]
		if !ok {
			continue
		}
		if analysis.BestThroughput == nil || throughput > analysis.BestThroughput.Throughput {
			analysis.BestThroughput = &BestPoint{Concurrency: row.Concurrency, Throughput: throughput}
		}
	}

	for _, tier := range SloTiers {
		result := TierResult{Tier: tier}
		for _, row := range report.Rows {
			point := GoodputPoint{
				Concurrency: row.Concurrency,
				Met:         tier.Met(row),
				TtftP90:     row.Metrics[ttftP90Key],
				ItlP90:      row.Metrics[itlP90Key],
			}
			if point.Met {
				point.RequestGoodput = row.Metrics[requestThroughputKey]
				point.TokenGoodput = row.Metrics[tokenThroughputKey]
				point.TokenGoodputPerUser = row.Metrics[tokenPerUserKey]
			}
			result.Points = append(result.Points, point)
			if point.Met && point.RequestGoodput > 0 &&
				(result.Best == nil || point.RequestGoodput > result.Best.RequestGoodput) {
				best := point
				result.Best = &best
			}
		}
		analysis.Tiers = append(analysis.Tiers, result)
	}
	return analysis
}
