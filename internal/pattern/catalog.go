package pattern

import "github.com/ledgertier/ledgertier/internal/model"

// Expense categories used by the curated catalog.
const (
	CategoryAirfare   = "Airfare"
	CategoryLodging   = "Lodging"
	CategoryCarRental = "Car Rental"
	CategoryParking   = "Parking"
	CategoryRideShare = "Ride Share"
	CategorySoftware  = "Software"
	CategoryUtilities = "Utilities"
	CategoryRetail    = "Retail"
	CategoryMeals     = "Meals"
)

// curatedCatalog is the vendor seed list distilled from historical expense
// reports: the travel, subscription, and retail vendors that dominate real
// statements. Match patterns are the statement-side spellings.
var curatedCatalog = []model.VendorAlias{
	{CanonicalName: "Delta Airlines", MatchPattern: "DELTA AIR", Category: CategoryAirfare},
	{CanonicalName: "American Airlines", MatchPattern: "AMERICAN AIR", Category: CategoryAirfare},
	{CanonicalName: "Southwest Airlines", MatchPattern: "SOUTHWEST", Category: CategoryAirfare},
	{CanonicalName: "United Airlines", MatchPattern: "UNITED", Category: CategoryAirfare},

	{CanonicalName: "Hampton Inn", MatchPattern: "HAMPTON INN", Category: CategoryLodging},
	{CanonicalName: "Hilton", MatchPattern: "HILTON", Category: CategoryLodging},
	{CanonicalName: "Marriott", MatchPattern: "MARRIOTT", Category: CategoryLodging},
	{CanonicalName: "DoubleTree", MatchPattern: "DOUBLETREE", Category: CategoryLodging},

	{CanonicalName: "Hertz", MatchPattern: "HERTZ", Category: CategoryCarRental},
	{CanonicalName: "Enterprise", MatchPattern: "ENTERPRISE RENT", Category: CategoryCarRental},

	{CanonicalName: "RDU Airport Parking", MatchPattern: "RDUAA", Category: CategoryParking},

	{CanonicalName: "Lyft", MatchPattern: "LYFT", Category: CategoryRideShare},
	{CanonicalName: "Uber", MatchPattern: "UBER", Category: CategoryRideShare},

	{CanonicalName: "OpenAI", MatchPattern: "CHATGPT", Category: CategorySoftware},
	{CanonicalName: "Anthropic Claude", MatchPattern: "CLAUDE.AI", Category: CategorySoftware},
	{CanonicalName: "Twilio", MatchPattern: "TWILIO", Category: CategorySoftware},
	{CanonicalName: "GoDaddy", MatchPattern: "GODADDY", Category: CategorySoftware},
	{CanonicalName: "Starlink", MatchPattern: "STARLINK", Category: CategorySoftware},

	{CanonicalName: "AT&T", MatchPattern: "ATT", Category: CategoryUtilities},
	{CanonicalName: "Verizon", MatchPattern: "VZW", Category: CategoryUtilities},
	{CanonicalName: "Google Fiber", MatchPattern: "GFIBER", Category: CategoryUtilities},

	{CanonicalName: "Amazon", MatchPattern: "AMZN", Category: CategoryRetail},
	{CanonicalName: "Best Buy", MatchPattern: "BEST BUY", Category: CategoryRetail},
	{CanonicalName: "Walmart", MatchPattern: "WALMART", Category: CategoryRetail},
	{CanonicalName: "Dell", MatchPattern: "DELL", Category: CategoryRetail},
	{CanonicalName: "Apple", MatchPattern: "APPLE", Category: CategoryRetail},

	{CanonicalName: "Starbucks", MatchPattern: "STARBUCKS", Category: CategoryMeals},
	{CanonicalName: "DoorDash", MatchPattern: "DOORDASH", Category: CategoryMeals},
	{CanonicalName: "Chick-fil-A", MatchPattern: "CHICKFILA", Category: CategoryMeals},
}

// CuratedAliases returns the seed catalog. Callers may mutate the copy.
func CuratedAliases() []model.VendorAlias {
	out := make([]model.VendorAlias, len(curatedCatalog))
	copy(out, curatedCatalog)
	for i := range out {
		out[i].Source = model.AliasSourceCurated
	}
	return out
}

// DetectCategory fuzzy-matches a vendor name against the curated catalog and
// returns its expense category. Both canonical names and statement-side
// spellings count as candidates.
func DetectCategory(vendor string, floor float64) (string, bool) {
	candidates := make([]string, 0, 2*len(curatedCatalog))
	byName := make(map[string]string, 2*len(curatedCatalog))
	for _, alias := range curatedCatalog {
		candidates = append(candidates, alias.CanonicalName, alias.MatchPattern)
		byName[alias.CanonicalName] = alias.Category
		byName[alias.MatchPattern] = alias.Category
	}

	match, _, ok := BestMatch(vendor, candidates, floor)
	if !ok {
		return "", false
	}
	return byName[match], true
}
