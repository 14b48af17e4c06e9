package domain

import "errors"

// FeatureCost prices a single feature in coins.
type FeatureCost struct {
	ID                    string `json:"featureId"`
	Cost                  int64  `json:"cost"`
	Name                  string `json:"name"`
	Category              string `json:"category"`
	FreeTierAvailable     bool   `json:"freeTierAvailable"`
	SubscriptionUnlimited bool   `json:"subscriptionUnlimited"`
}

// Stats summarizes the catalog for operators.
type Stats struct {
	TotalFeatures                 int      `json:"totalFeatures"`
	Categories                    []string `json:"categories"`
	AverageCost                   float64  `json:"averageFeatureCost"`
	FreeTierFeatures              int      `json:"freeTierFeatures"`
	SubscriptionUnlimitedFeatures int      `json:"subscriptionUnlimitedFeatures"`
}

// Catalog is the read-only feature price list.
type Catalog interface {
	Get(featureID string) (FeatureCost, bool)
	All() map[string]FeatureCost
	List() []FeatureCost
	Stats() Stats
}

var ErrFeatureNotFound = errors.New("feature_not_found")
