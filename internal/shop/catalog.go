// Package shop defines the upgrade catalog players spend stars on.
package shop

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"star-clicker/internal/economy"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ItemID identifies an upgrade kind.
type ItemID string

const (
	ItemMultitap    ItemID = "multitap"
	ItemEnergyLimit ItemID = "energy_limit"
)

// Effect is what owning a level of an upgrade does.
type Effect string

const (
	// EffectClickValue raises stars per click; the click value is the level.
	EffectClickValue Effect = "click_value"
	// EffectMaxEnergy raises max_energy by EffectAmount per level.
	EffectMaxEnergy Effect = "max_energy"
)

// Item is one purchasable upgrade.
type Item struct {
	ID          ItemID          `yaml:"id"`
	Name        string          `yaml:"name"`
	Emoji       string          `yaml:"emoji"`
	Description string          `yaml:"description"`
	BasePrice   decimal.Decimal `yaml:"base_price"`
	Effect      Effect          `yaml:"effect"`
	// EffectAmount is set only for max_energy.
	EffectAmount int `yaml:"effect_amount"`
	// MaxLevel of 0 means unlimited.
	MaxLevel int `yaml:"max_level"`
}

// PriceAt returns the price of buying the next level when level are owned.
func (i Item) PriceAt(level int, growth decimal.Decimal) decimal.Decimal {
	return economy.Price(i.BasePrice, level, growth)
}

// AtMaxLevel reports whether no further level can be bought.
func (i Item) AtMaxLevel(level int) bool {
	return i.MaxLevel > 0 && level >= i.MaxLevel
}

// Catalog is an ordered, validated set of items.
type Catalog struct {
	items []Item
	byID  map[ItemID]Item
}

type catalogFile struct {
	Items []Item `yaml:"items"`
}

// ParseCatalog parses and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.Items) == 0 {
		return nil, errors.New("catalog has no items")
	}

	c := &Catalog{byID: make(map[ItemID]Item, len(file.Items))}
	for _, item := range file.Items {
		if item.ID == "" {
			return nil, errors.New("catalog item without id")
		}
		if _, dup := c.byID[item.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog item %q", item.ID)
		}
		if !item.BasePrice.IsPositive() {
			return nil, fmt.Errorf("item %q: base_price must be positive", item.ID)
		}
		switch item.Effect {
		case EffectClickValue:
			if item.EffectAmount != 0 {
				return nil, fmt.Errorf("item %q: effect_amount is not used by %s", item.ID, item.Effect)
			}
		case EffectMaxEnergy:
			if item.EffectAmount <= 0 {
				return nil, fmt.Errorf("item %q: effect_amount must be positive", item.ID)
			}
		default:
			return nil, fmt.Errorf("item %q: unknown effect %q", item.ID, item.Effect)
		}
		c.items = append(c.items, item)
		c.byID[item.ID] = item
	}
	return c, nil
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Items returns all items in display order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Get looks an item up by id.
func (c *Catalog) Get(id ItemID) (Item, bool) {
	item, ok := c.byID[id]
	return item, ok
}
