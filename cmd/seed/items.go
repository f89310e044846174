package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalog"
	"stockledger/pkg/numerator"
)

// seedFile is the YAML layout read by -items.
type seedFile struct {
	Items []seedItem `yaml:"items"`
}

type seedItem struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	Category   string `yaml:"category"`
	UnitCost   string `yaml:"unit_cost"`
	UnitPrice  string `yaml:"unit_price"`
	OpeningQty int64  `yaml:"opening_qty"`
}

func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// StockItems builds validated items. Codes must be unique within the file.
func (f *seedFile) StockItems() ([]*catalog.StockItem, error) {
	seen := make(map[string]int, len(f.Items))
	out := make([]*catalog.StockItem, 0, len(f.Items))
	for i, s := range f.Items {
		cost, err := types.NewMoneyFromString(s.UnitCost)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): unit_cost: %w", i+1, s.Code, err)
		}
		price, err := types.NewMoneyFromString(s.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): unit_price: %w", i+1, s.Code, err)
		}

		item := catalog.NewStockItem(s.Code, s.Name, cost, price, s.OpeningQty)
		item.Category = s.Category
		if err := item.Validate(context.Background()); err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i+1, s.Code, err)
		}
		if prev, dup := seen[item.Code]; dup {
			return nil, fmt.Errorf("item %d: code %s already used by item %d", i+1, item.Code, prev)
		}
		seen[item.Code] = i + 1
		out = append(out, item)
	}
	return out, nil
}

// highestGeneratedCode returns the largest number among codes that belong to
// the generated item series, or 0.
func highestGeneratedCode(items []*catalog.StockItem) int64 {
	var top int64
	for _, item := range items {
		if n, ok := numerator.Parse(numerator.ItemCodes, item.Code); ok && n > top {
			top = n
		}
	}
	return top
}
