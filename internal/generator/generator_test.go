package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/virtual-cafe/internal/model"
)

func TestParseTaggedComplete(t *testing.T) {
	req := require.New(t)

	item, ok := ParseTagged("[name:Matcha Latte][desc:Earthy and sweet][category:DRINK][prep:90][consume:300][mood:calm]")
	req.True(ok)
	req.Equal("Matcha Latte", item.Name)
	req.Equal("Earthy and sweet", item.Description)
	req.Equal(model.CategoryDrink, item.Category)
	req.Equal(90, item.PreparationSeconds)
	req.Equal(300, item.ConsumptionSeconds)
	req.Equal("calm", item.MoodTag)
	req.NotEmpty(item.ID)
}

func TestParseTaggedMissingName(t *testing.T) {
	req := require.New(t)

	_, ok := ParseTagged("[desc:Earthy][category:DRINK]")
	req.False(ok)
	_, ok = ParseTagged("[name:   ]")
	req.False(ok)
	_, ok = ParseTagged("plain text with no tags")
	req.False(ok)
}

func TestParseTaggedCategoryFallsBackToKeywords(t *testing.T) {
	req := require.New(t)

	item, ok := ParseTagged("[name:Iced Mocha][category:BEVERAGE]")
	req.True(ok)
	req.Equal(model.CategoryDrink, item.Category)

	item, ok = ParseTagged("[name:Lemon Tart]")
	req.True(ok)
	req.Equal(model.CategoryDessert, item.Category)
}

func TestParseTaggedTimingDefaults(t *testing.T) {
	req := require.New(t)

	// Missing, garbage and non-positive timings all take category defaults.
	for _, reply := range []string{
		"[name:Onigiri][category:FOOD]",
		"[name:Onigiri][category:FOOD][prep:soon][consume:later]",
		"[name:Onigiri][category:FOOD][prep:-5][consume:0]",
	} {
		item, ok := ParseTagged(reply)
		req.True(ok)
		req.Equal(180, item.PreparationSeconds)
		req.Equal(900, item.ConsumptionSeconds)
	}
}

func TestParseTaggedLowercaseCategory(t *testing.T) {
	req := require.New(t)

	item, ok := ParseTagged("[name:Oolong][category: drink ]")
	req.True(ok)
	req.Equal(model.CategoryDrink, item.Category)
}

func TestFallback(t *testing.T) {
	req := require.New(t)

	item := Fallback("strawberry smoothie")
	req.Equal("strawberry smoothie", item.Name)
	req.Equal(model.CategoryDrink, item.Category)
	req.Equal(60, item.PreparationSeconds)
	req.Equal(600, item.ConsumptionSeconds)
	req.NotEmpty(item.Description)

	item = Fallback("   ")
	req.Equal("House Blend", item.Name)
}

func TestGuessCategory(t *testing.T) {
	req := require.New(t)

	req.Equal(model.CategoryDrink, GuessCategory("hot chocolate cocoa"))
	req.Equal(model.CategoryDrink, GuessCategory("Iced Cola"))
	// "cola" must not fire inside "chocolate".
	req.Equal(model.CategoryDessert, GuessCategory("Chocolate Brownie"))
	req.Equal(model.CategoryDessert, GuessCategory("vanilla ice cream"))
	req.Equal(model.CategoryFood, GuessCategory("club sandwich"))
}

type stubTextGenerator struct {
	reply string
	err   error
}

func (s *stubTextGenerator) GenerateItem(context.Context, string, string) (string, error) {
	return s.reply, s.err
}

func TestGenerateParsesReply(t *testing.T) {
	req := require.New(t)

	g := New(&stubTextGenerator{reply: "[name:Cloud Pudding][category:DESSERT]"}, time.Second)
	item := g.Generate(context.Background(), "", "something fluffy")
	req.Equal("Cloud Pudding", item.Name)
	req.Equal(model.CategoryDessert, item.Category)
}

func TestGenerateFallsBack(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// No generator wired at all.
	item := New(nil, time.Second).Generate(ctx, "", "green tea")
	req.Equal("green tea", item.Name)
	req.Equal(model.CategoryDrink, item.Category)

	// Generator errors out.
	item = New(&stubTextGenerator{err: errors.New("down")}, time.Second).Generate(ctx, "", "green tea")
	req.Equal("green tea", item.Name)

	// Generator replies with garbage.
	item = New(&stubTextGenerator{reply: "sorry, no idea"}, time.Second).Generate(ctx, "", "green tea")
	req.Equal("green tea", item.Name)
}

func TestSummarize(t *testing.T) {
	req := require.New(t)

	out := Summarize([]model.MenuItem{
		{Name: "Latte", Category: model.CategoryDrink},
		{Name: "Scone", Category: model.CategoryDessert},
	})
	req.Equal("Latte (DRINK)\nScone (DESSERT)\n", out)
}
