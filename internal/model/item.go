package model

// Category classifies a menu item. It decides the default preparation and
// consumption timings used when the item generator returns an incomplete
// description.
type Category string

const (
	CategoryDrink   Category = "DRINK"
	CategoryFood    Category = "FOOD"
	CategoryDessert Category = "DESSERT"
)

// MenuItem describes something a user can order. Items are immutable once
// created: catalog items are loaded from the menu_items table, generated
// items are synthesized per order by the external item generator and scoped
// to that order.
//
// Fields:
//
//	ID                 – catalog identifier, or a per-order identifier for
//	                     generated items.
//	Name               – display name.
//	Description        – short flavor text.
//	Category           – DRINK, FOOD or DESSERT.
//	PreparationSeconds – time the preparer slot is occupied.
//	ConsumptionSeconds – lifetime of the consumable created when served.
//	MoodTag            – free-form tag used by presentation layers.
type MenuItem struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Category           Category `json:"category"`
	PreparationSeconds int      `json:"preparation_seconds"`
	ConsumptionSeconds int      `json:"consumption_seconds"`
	MoodTag            string   `json:"mood_tag"`
}

// DefaultTimings returns the fallback preparation and consumption seconds
// for a category. These apply when the generator omits or mangles the timing
// fields of a free-form order.
func DefaultTimings(c Category) (prep, consume int) {
	switch c {
	case CategoryDrink:
		return 60, 600
	case CategoryDessert:
		return 120, 600
	default:
		return 180, 900
	}
}
