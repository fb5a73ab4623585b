package subscription

import "webaudit_backend/internal/model"

// HasFeature reports whether feature is in the plan's allow-list. Features have
// no hierarchy; a nil plan grants nothing.
func HasFeature(plan *model.Plan, feature Feature) bool {
	if plan == nil {
		return false
	}
	for _, f := range plan.Features {
		if f == string(feature) {
			return true
		}
	}
	return false
}

// CanCreateProject reports whether a user holding plan may create one more
// project given currentCount existing ones.
func CanCreateProject(plan *model.Plan, currentCount int64) bool {
	if plan == nil {
		return false
	}
	limit := DefaultMaxProjects
	if plan.MaxProjects != nil {
		limit = *plan.MaxProjects
	}
	if limit == UnlimitedProjects {
		return true
	}
	return currentCount < int64(limit)
}

// AllowedFeatures returns a copy of the plan's feature list for rendering.
func AllowedFeatures(plan *model.Plan) []Feature {
	if plan == nil {
		return []Feature{}
	}
	out := make([]Feature, 0, len(plan.Features))
	for _, f := range plan.Features {
		out = append(out, Feature(f))
	}
	return out
}
