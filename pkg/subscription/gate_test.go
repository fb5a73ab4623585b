package subscription_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/subscription"
)

func intPtr(n int) *int { return &n }

func TestHasFeature(t *testing.T) {
	plan := &model.Plan{Features: []string{"basic_audit", "seo_analysis"}}

	assert.True(t, subscription.HasFeature(plan, subscription.BasicAudit))
	assert.True(t, subscription.HasFeature(plan, subscription.SEOAnalysis))
	assert.False(t, subscription.HasFeature(plan, subscription.SiteCrawl))
	assert.False(t, subscription.HasFeature(plan, "BASIC_AUDIT"), "identifiers are case sensitive")
	assert.False(t, subscription.HasFeature(nil, subscription.BasicAudit))
	assert.False(t, subscription.HasFeature(&model.Plan{}, subscription.BasicAudit))
}

func TestCanCreateProject(t *testing.T) {
	tests := []struct {
		name  string
		plan  *model.Plan
		count int64
		want  bool
	}{
		{"nil plan", nil, 0, false},
		{"under limit", &model.Plan{MaxProjects: intPtr(10)}, 9, true},
		{"at limit", &model.Plan{MaxProjects: intPtr(10)}, 10, false},
		{"over limit", &model.Plan{MaxProjects: intPtr(1)}, 3, false},
		{"unlimited", &model.Plan{MaxProjects: intPtr(subscription.UnlimitedProjects)}, 100000, true},
		{"missing limit defaults to one", &model.Plan{}, 0, true},
		{"missing limit reached", &model.Plan{}, 1, false},
		{"zero limit", &model.Plan{MaxProjects: intPtr(0)}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, subscription.CanCreateProject(tt.plan, tt.count))
		})
	}
}

func TestAllowedFeatures(t *testing.T) {
	plan := &model.Plan{Features: []string{"site_crawl", "export_pdf"}}

	got := subscription.AllowedFeatures(plan)
	assert.Equal(t, []subscription.Feature{subscription.SiteCrawl, subscription.ExportPDF}, got)

	got[0] = "tampered"
	assert.Equal(t, "site_crawl", plan.Features[0])

	assert.Empty(t, subscription.AllowedFeatures(nil))
	assert.NotNil(t, subscription.AllowedFeatures(nil))
}
