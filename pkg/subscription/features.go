package subscription

import (
	"fmt"
	"sort"
	"strings"
)

type PlanType string
type Feature string
type Category string

const (
	StarterPlan PlanType = "Starter"
	GrowthPlan  PlanType = "Growth"
	ScalePlan   PlanType = "Scale"
)

const (
	// UnlimitedProjects is the max-projects sentinel for plans without a cap.
	UnlimitedProjects = -1
	// DefaultMaxProjects applies when a plan row carries no project limit.
	DefaultMaxProjects = 1
)

const (
	CategoryCrawl       Category = "crawl"
	CategoryAnalysis    Category = "analysis"
	CategoryPerformance Category = "performance"
	CategoryReporting   Category = "reporting"
	CategorySupport     Category = "support"
)

const (
	BasicAudit         Feature = "basic_audit"
	SiteCrawl          Feature = "site_crawl"
	SEOAnalysis        Feature = "seo_analysis"
	ContentAnalysis    Feature = "content_analysis"
	AIContentInsights  Feature = "ai_content_insights"
	PerformanceAudit   Feature = "performance_audit"
	Screenshots        Feature = "screenshots"
	CompetitorAnalysis Feature = "competitor_analysis"
	ScheduledCrawls    Feature = "scheduled_crawls"
	ExportPDF          Feature = "export_pdf"
	APIAccess          Feature = "api_access"
	WhiteLabelReports  Feature = "white_label_reports"
	PrioritySupport    Feature = "priority_support"
)

type FeatureInfo struct {
	ID          Feature  `json:"id"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

// Catalog lists every feature identifier a plan may reference.
var Catalog = []FeatureInfo{
	{BasicAudit, CategoryCrawl, "Single-page audit with core SEO checks"},
	{SiteCrawl, CategoryCrawl, "Multi-page crawl of a website"},
	{ScheduledCrawls, CategoryCrawl, "Recurring crawls on a schedule"},
	{SEOAnalysis, CategoryAnalysis, "Meta tags, headings and link analysis"},
	{ContentAnalysis, CategoryAnalysis, "Readability and keyword analysis"},
	{AIContentInsights, CategoryAnalysis, "AI-assisted content recommendations"},
	{CompetitorAnalysis, CategoryAnalysis, "Side-by-side comparison with competitor sites"},
	{PerformanceAudit, CategoryPerformance, "PageSpeed performance metrics"},
	{Screenshots, CategoryPerformance, "Full-page screenshots of crawled pages"},
	{ExportPDF, CategoryReporting, "PDF export of audit reports"},
	{WhiteLabelReports, CategoryReporting, "Reports without Web Audit Pro branding"},
	{APIAccess, CategoryReporting, "Programmatic access to audit results"},
	{PrioritySupport, CategorySupport, "Priority email support"},
}

var catalogIndex = func() map[Feature]FeatureInfo {
	idx := make(map[Feature]FeatureInfo, len(Catalog))
	for _, f := range Catalog {
		idx[f.ID] = f
	}
	return idx
}()

// LookupFeature returns the catalog entry for id.
func LookupFeature(id Feature) (FeatureInfo, bool) {
	info, ok := catalogIndex[id]
	return info, ok
}

// ValidateFeatures checks a plan's feature list against the catalog. Unknown
// and duplicated identifiers are both reported.
func ValidateFeatures(features []string) error {
	var unknown, dupes []string
	seen := make(map[string]bool, len(features))
	for _, f := range features {
		if seen[f] {
			dupes = append(dupes, f)
			continue
		}
		seen[f] = true
		if _, ok := catalogIndex[Feature(f)]; !ok {
			unknown = append(unknown, f)
		}
	}

	var problems []string
	if len(unknown) > 0 {
		sort.Strings(unknown)
		problems = append(problems, "unknown features: "+strings.Join(unknown, ", "))
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		problems = append(problems, "duplicate features: "+strings.Join(dupes, ", "))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid feature list: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ParsePlanType accepts plan type names case-insensitively.
func ParsePlanType(s string) (PlanType, bool) {
	for _, t := range []PlanType{StarterPlan, GrowthPlan, ScalePlan} {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, true
		}
	}
	return "", false
}

type PlanDefaults struct {
	Name         string
	MaxProjects  int
	Price        int64 // minor units
	BillingCycle string
	Features     []Feature
}

// DefaultPlans is the plan set seeded into an empty database.
var DefaultPlans = map[PlanType]PlanDefaults{
	StarterPlan: {
		Name:        "Starter",
		MaxProjects: 1,
		Features:    []Feature{BasicAudit, SEOAnalysis},
	},
	GrowthPlan: {
		Name:         "Growth",
		MaxProjects:  10,
		Price:        149900,
		BillingCycle: "monthly",
		Features: []Feature{
			BasicAudit, SiteCrawl, SEOAnalysis, ContentAnalysis,
			AIContentInsights, PerformanceAudit, Screenshots, ExportPDF,
		},
	},
	ScalePlan: {
		Name:         "Scale",
		MaxProjects:  UnlimitedProjects,
		Price:        499900,
		BillingCycle: "monthly",
		Features: []Feature{
			BasicAudit, SiteCrawl, ScheduledCrawls, SEOAnalysis, ContentAnalysis,
			AIContentInsights, CompetitorAnalysis, PerformanceAudit, Screenshots,
			ExportPDF, WhiteLabelReports, APIAccess, PrioritySupport,
		},
	},
}

// FeatureStrings converts typed features to the string form stored in rows.
func FeatureStrings(features []Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = string(f)
	}
	return out
}
