// Package scoring holds the fixed business weighting formulas that turn raw
// interaction counters into popularity and bestseller rankings. The weights
// are business-tunable constants; reconciliation logic never embeds them.
package scoring

// A search is a stronger popularity signal than a view.
const SearchWeight = 2

// Category popularity blends long-term volume with windowed signal so a
// recent spike moves the score quickly while history prevents thrash.
// Weekly and daily counts are normalized toward a 3-week / 7-day horizon
// before weighting.
const (
	LongTermShare  = 0.6
	MediumShare    = 0.3
	ShortTermShare = 0.1

	WeeklyNormalization = 3
	DailyNormalization  = 7
)

// A quotation request is worth this many views in product popularity.
const QuotationWeight = 5

// CategoryCounters are the authoritative counters a category score derives from.
type CategoryCounters struct {
	Views          int64
	Searches       int64
	DailyViews     int64
	DailySearches  int64
	WeeklyViews    int64
	WeeklySearches int64
}

// CategoryPopularity computes the blended popularity score. Deterministic,
// pure function of the counters: the same inputs always yield the same score.
func CategoryPopularity(c CategoryCounters) float64 {
	longTerm := float64(c.Views + c.Searches*SearchWeight)
	mediumTerm := float64(c.WeeklyViews+c.WeeklySearches*SearchWeight) * WeeklyNormalization
	shortTerm := float64(c.DailyViews+c.DailySearches*SearchWeight) * DailyNormalization

	return longTerm*LongTermShare + mediumTerm*MediumShare + shortTerm*ShortTermShare
}

// ProductPopularity weighs a quotation request QuotationWeight times a view.
func ProductPopularity(views, quotationsSent int64) float64 {
	return float64(views + quotationsSent*QuotationWeight)
}

// BestsellerScore is the pure conversion count.
func BestsellerScore(acceptedQuotations int64) float64 {
	return float64(acceptedQuotations)
}

// Engagement blends a buyer/category interaction volume the same way the
// category score does, without the view/search split.
func Engagement(total, weekly, daily int64) float64 {
	return float64(total)*LongTermShare +
		float64(weekly)*WeeklyNormalization*MediumShare +
		float64(daily)*DailyNormalization*ShortTermShare
}
