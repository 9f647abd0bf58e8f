package models

// FallbackIcon is shown for categories with no icon of their own and no
// well-known name.
const FallbackIcon = "pricetag-outline"

var defaultIcons = map[string]string{
	"Salary":       "cash-outline",
	"Business":     "business-outline",
	"Freelance":    "laptop-outline",
	"Investment":   "trending-up-outline",
	"Gift":         "gift-outline",
	"Other Income": "ellipsis-horizontal-circle-outline",

	"Food":          "restaurant-outline",
	"Transport":     "car-outline",
	"Shopping":      "cart-outline",
	"Housing":       "home-outline",
	"Entertainment": "musical-notes-outline",
	"Health":        "heart-outline",
	"Education":     "book-outline",
	"Bills":         "receipt-outline",
	"Travel":        "airplane-outline",
	"Other":         "ellipsis-horizontal-circle-outline",
}

// DefaultIcon returns the conventional icon for a category name.
func DefaultIcon(name string) string {
	if icon, ok := defaultIcons[name]; ok {
		return icon
	}
	return FallbackIcon
}
