// Package generator wraps the external item generator: it builds the
// request, parses the tagged reply, and synthesizes a fallback item when the
// reply is missing, late, or malformed. An order placed through this package
// always yields an item; quality degrades, the order never fails.
package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/iliyamo/virtual-cafe/internal/model"
)

// TextGenerator is the external collaborator that turns a free-text request
// plus a catalog summary into a tagged item description. Implementations
// must respect ctx cancellation; the engine calls with a deadline.
type TextGenerator interface {
	GenerateItem(ctx context.Context, catalogSummary, request string) (string, error)
}

// ItemGenerator produces order-scoped menu items from free-form requests.
type ItemGenerator struct {
	gen     TextGenerator
	timeout time.Duration
}

// New returns an ItemGenerator that waits at most timeout for the external
// generator before falling back to keyword synthesis.
func New(gen TextGenerator, timeout time.Duration) *ItemGenerator {
	return &ItemGenerator{gen: gen, timeout: timeout}
}

// Generate asks the external generator for an item matching the request and
// parses its reply. Any failure (transport error, timeout, unparseable
// reply) degrades to Fallback. The returned item is immutable and scoped to
// the order being placed.
func (g *ItemGenerator) Generate(ctx context.Context, catalogSummary, request string) model.MenuItem {
	if g.gen == nil {
		return Fallback(request)
	}
	gctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	reply, err := g.gen.GenerateItem(gctx, catalogSummary, request)
	if err != nil {
		return Fallback(request)
	}
	item, ok := ParseTagged(reply)
	if !ok {
		return Fallback(request)
	}
	return item
}

// ParseTagged extracts an item from the generator's fixed delimited format:
//
//	[name:Matcha Latte][desc:Earthy and sweet][category:DRINK][prep:90][consume:600]
//
// name is required. Missing or unparseable category falls back to keyword
// guessing on the name; missing or non-positive timings fall back to the
// category defaults. ok is false only when no name can be extracted at all.
func ParseTagged(reply string) (model.MenuItem, bool) {
	name := strings.TrimSpace(tagValue(reply, "name"))
	if name == "" {
		return model.MenuItem{}, false
	}

	category, catOK := parseCategory(tagValue(reply, "category"))
	if !catOK {
		category = GuessCategory(name)
	}
	defPrep, defConsume := model.DefaultTimings(category)

	prep := parseSeconds(tagValue(reply, "prep"), defPrep)
	consume := parseSeconds(tagValue(reply, "consume"), defConsume)

	return model.MenuItem{
		ID:                 "gen-" + uuid.NewString(),
		Name:               name,
		Description:        strings.TrimSpace(tagValue(reply, "desc")),
		Category:           category,
		PreparationSeconds: prep,
		ConsumptionSeconds: consume,
		MoodTag:            strings.TrimSpace(tagValue(reply, "mood")),
	}, true
}

// Fallback synthesizes an item purely from the request text: keyword-guessed
// category, category-default timings. Never surfaced to the user as an
// error; they simply get a plainer item than the generator would have made.
func Fallback(request string) model.MenuItem {
	name := strings.TrimSpace(request)
	if name == "" {
		name = "House Blend"
	}
	category := GuessCategory(name)
	prep, consume := model.DefaultTimings(category)
	return model.MenuItem{
		ID:                 "gen-" + uuid.NewString(),
		Name:               name,
		Description:        fmt.Sprintf("A freshly made %s, just for you.", strings.ToLower(name)),
		Category:           category,
		PreparationSeconds: prep,
		ConsumptionSeconds: consume,
	}
}

var drinkKeywords = []string{
	"coffee", "espresso", "latte", "cappuccino", "mocha", "tea", "matcha",
	"juice", "soda", "cola", "milk", "cocoa", "smoothie", "lemonade", "water",
}

var dessertKeywords = []string{
	"cake", "cookie", "pudding", "parfait", "pie", "tart", "ice cream",
	"chocolate", "sweet", "donut", "waffle", "crepe", "mousse", "brownie",
}

// GuessCategory classifies a request by keyword: drink words win, then sweet
// words, then FOOD as the default. Single keywords match whole words only,
// so "cola" cannot fire inside "chocolate"; keywords with a space match as
// phrases.
func GuessCategory(text string) model.Category {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if matchesKeyword(lower, words, drinkKeywords) {
		return model.CategoryDrink
	}
	if matchesKeyword(lower, words, dessertKeywords) {
		return model.CategoryDessert
	}
	return model.CategoryFood
}

func matchesKeyword(lower string, words, keywords []string) bool {
	for _, kw := range keywords {
		if strings.ContainsRune(kw, ' ') {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		if lo.Contains(words, kw) {
			return true
		}
	}
	return false
}

// tagValue pulls the value of one [key:value] tag out of the reply, "" when
// the tag is absent.
func tagValue(reply, key string) string {
	marker := "[" + key + ":"
	start := strings.Index(reply, marker)
	if start < 0 {
		return ""
	}
	rest := reply[start+len(marker):]
	end := strings.Index(rest, "]")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func parseCategory(raw string) (model.Category, bool) {
	switch model.Category(strings.ToUpper(strings.TrimSpace(raw))) {
	case model.CategoryDrink:
		return model.CategoryDrink, true
	case model.CategoryFood:
		return model.CategoryFood, true
	case model.CategoryDessert:
		return model.CategoryDessert, true
	}
	return "", false
}

func parseSeconds(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Summarize renders the catalog in the compact form the generator prompt
// expects: one "name (category)" entry per line.
func Summarize(items []model.MenuItem) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s (%s)\n", it.Name, it.Category)
	}
	return b.String()
}
