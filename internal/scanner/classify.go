package scanner

import "github.com/danielolaszy/todotagger/pkg/models"

// Classify returns the first tier, in critical, high, medium, low order,
// with any pattern matching content. Text matching nothing is normal.
func (r *Registry) Classify(content string) models.Priority {
	for _, rule := range r.priorities {
		for _, re := range rule.patterns {
			if re.MatchString(content) {
				return rule.priority
			}
		}
	}
	return models.PriorityNormal
}
