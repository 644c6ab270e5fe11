// Package fulfillment распределяет позиции заказа по складам и отгрузкам.
package fulfillment

import (
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Имена стратегий распределения для фабрики.
const (
	StrategyHighestStock    = "highest_stock_first"
	StrategyNearestLocation = "nearest_location"
	StrategyManual          = "manual"
)

// Strategy упорядочивает кандидатов на резервирование. Планировщик
// аллоцирует жадно по возвращённому порядку.
type Strategy interface {
	Name() string
	// Rank возвращает записи стока в порядке предпочтения аллокации.
	Rank(items []domain.StockItem, locations []domain.StockLocation) []domain.StockItem
}

// StrategyOptions — параметры построения стратегии.
type StrategyOptions struct {
	// ManualOrder — явный порядок складов для стратегии manual.
	ManualOrder []string
}

// ForName выбирает стратегию по имени из конфигурации.
// Пустое имя означает стратегию по умолчанию: highest_stock_first.
func ForName(name string, opts StrategyOptions) (Strategy, error) {
	switch name {
	case "", StrategyHighestStock:
		return highestStockFirst{}, nil
	case StrategyNearestLocation:
		return nearestLocation{}, nil
	case StrategyManual:
		if len(opts.ManualOrder) == 0 {
			return nil, fmt.Errorf("manual strategy requires explicit location order")
		}
		return manual{order: opts.ManualOrder}, nil
	default:
		return nil, fmt.Errorf("unknown fulfillment strategy %q", name)
	}
}

// highestStockFirst предпочитает склад с наибольшим доступным остатком:
// меньше шансов дробить заказ на несколько отгрузок.
type highestStockFirst struct{}

func (highestStockFirst) Name() string { return StrategyHighestStock }

func (highestStockFirst) Rank(items []domain.StockItem, _ []domain.StockLocation) []domain.StockItem {
	ranked := append([]domain.StockItem(nil), items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AvailableQty() != ranked[j].AvailableQty() {
			return ranked[i].AvailableQty() > ranked[j].AvailableQty()
		}
		return ranked[i].LocationID < ranked[j].LocationID
	})
	return ranked
}

// nearestLocation предпочитает склад с меньшим рангом близости.
type nearestLocation struct{}

func (nearestLocation) Name() string { return StrategyNearestLocation }

func (nearestLocation) Rank(items []domain.StockItem, locations []domain.StockLocation) []domain.StockItem {
	rank := make(map[string]int32, len(locations))
	for _, loc := range locations {
		rank[loc.ID] = loc.ProximityRank
	}
	ranked := append([]domain.StockItem(nil), items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, iOK := rank[ranked[i].LocationID]
		rj, jOK := rank[ranked[j].LocationID]
		// Склады без ранга уходят в конец.
		if iOK != jOK {
			return iOK
		}
		if ri != rj {
			return ri < rj
		}
		return ranked[i].LocationID < ranked[j].LocationID
	})
	return ranked
}

// manual следует порядку складов, заданному оператором.
type manual struct {
	order []string
}

func (manual) Name() string { return StrategyManual }

func (m manual) Rank(items []domain.StockItem, _ []domain.StockLocation) []domain.StockItem {
	pos := make(map[string]int, len(m.order))
	for i, id := range m.order {
		pos[id] = i
	}
	ranked := make([]domain.StockItem, 0, len(items))
	for _, item := range items {
		if _, ok := pos[item.LocationID]; ok {
			ranked = append(ranked, item)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return pos[ranked[i].LocationID] < pos[ranked[j].LocationID]
	})
	return ranked
}
