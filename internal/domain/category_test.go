package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCategorySet(t *testing.T) {
	t.Run("DefaultsWhenEmpty", func(t *testing.T) {
		set := NewCategorySet(nil, "")

		assert.Equal(t, DefaultCategories, set.Names())
		assert.Equal(t, DefaultFallbackCategory, set.Fallback())
	})

	t.Run("AppendsMissingFallback", func(t *testing.T) {
		set := NewCategorySet([]string{"Food", "Fuel"}, "Misc")

		assert.Equal(t, []string{"Food", "Fuel", "Misc"}, set.Names())
		assert.Equal(t, "Misc", set.Fallback())
	})

	t.Run("FallbackAlreadyMemberKeepsConfiguredCasing", func(t *testing.T) {
		set := NewCategorySet([]string{"Food", "Other"}, "other")

		assert.Equal(t, []string{"Food", "Other"}, set.Names())
		assert.Equal(t, "Other", set.Fallback())
	})

	t.Run("DropsDuplicatesAndBlanks", func(t *testing.T) {
		set := NewCategorySet([]string{"Food", " food ", "", "Fuel"}, "Other")

		assert.Equal(t, []string{"Food", "Fuel", "Other"}, set.Names())
	})
}

func TestCategorySetNormalize(t *testing.T) {
	set := NewCategorySet([]string{"Beverage", "House Items", "Groceries"}, "Other")

	t.Run("CanonicalizesCasing", func(t *testing.T) {
		name, ok := set.Normalize("beverage")
		assert.True(t, ok)
		assert.Equal(t, "Beverage", name)

		name, ok = set.Normalize("HOUSE ITEMS")
		assert.True(t, ok)
		assert.Equal(t, "House Items", name)
	})

	t.Run("TrimsWhitespace", func(t *testing.T) {
		name, ok := set.Normalize("  groceries ")
		assert.True(t, ok)
		assert.Equal(t, "Groceries", name)
	})

	t.Run("UnknownMapsToFallback", func(t *testing.T) {
		name, ok := set.Normalize("Electronics")
		assert.False(t, ok)
		assert.Equal(t, "Other", name)
	})
}

func TestReceiptItemTotal(t *testing.T) {
	receipt := NewReceipt()
	assert.Zero(t, receipt.ItemTotal())

	receipt.AddItem(ReceiptItem{Name: "Milk", Price: 3.99, Category: "Groceries"})
	receipt.AddItem(ReceiptItem{Name: "Coffee", Price: 5.99, Category: "Beverage"})

	assert.InDelta(t, 9.98, receipt.ItemTotal(), 0.001)
}
