package order

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"kitchen-sync/internal/models"
)

// MenuCatalog resolves menu items by id
type MenuCatalog interface {
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
}

// MemoryMenu is a fixed, read-only menu
type MemoryMenu struct {
	items map[string]models.MenuItem
}

func NewMemoryMenu(items ...models.MenuItem) *MemoryMenu {
	m := &MemoryMenu{items: make(map[string]models.MenuItem, len(items))}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *MemoryMenu) GetMenuItem(_ context.Context, id string) (*models.MenuItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMenuItemNotFound, id)
	}
	return &item, nil
}

type menuFile struct {
	Items []struct {
		ID       string  `yaml:"id"`
		Name     string  `yaml:"name"`
		Price    float64 `yaml:"price"`
		Category string  `yaml:"category"`
	} `yaml:"items"`
}

// LoadMenuFile reads a YAML menu for the in-memory store
func LoadMenuFile(path string) (*MemoryMenu, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open menu file: %w", err)
	}
	defer f.Close()

	var raw menuFile
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode menu file: %w", err)
	}

	items := make([]models.MenuItem, 0, len(raw.Items))
	for i, item := range raw.Items {
		if item.ID == "" || item.Name == "" {
			return nil, fmt.Errorf("menu item %d: id and name are required", i)
		}
		if item.Price < 0 {
			return nil, fmt.Errorf("menu item %s: price must not be negative", item.ID)
		}
		category := models.MenuCategory(item.Category)
		if category != "" && category != models.CategoryKitchen && category != models.CategoryBar {
			return nil, fmt.Errorf("menu item %s: unknown category %q", item.ID, item.Category)
		}
		items = append(items, models.MenuItem{ID: item.ID, Name: item.Name, Price: item.Price, Category: category})
	}
	return NewMemoryMenu(items...), nil
}
