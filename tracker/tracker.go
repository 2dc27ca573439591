package tracker

// Package tracker keeps an in-memory record of the resources a test run
// created, grouped by category, so they can be deleted again on teardown.

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/perfgo/testkeeper/model"
	"github.com/rs/zerolog"
)

// Tracker maps a category to the ordered list of resources tracked under it.
//
// A Tracker is owned by a single test control flow and is not safe for
// concurrent mutation.
type Tracker struct {
	logger     zerolog.Logger
	now        func() time.Time
	items      map[model.Category][]*model.TrackedResource
	categories []model.Category
}

// Option is a function that configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source used for CreatedAt and generated ids.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Stats summarizes the tracker contents.
type Stats struct {
	// Number of tracked items, cleaned or not
	Total int `json:"total"`
	// Number of uncleaned items per category
	ByCategory map[model.Category]int `json:"byCategory"`
	// Number of cleaned items across all categories
	Cleaned int `json:"cleaned"`
}

// New creates an empty tracker.
func New(logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		logger: logger,
		now:    time.Now,
		items:  make(map[model.Category][]*model.TrackedResource),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Track appends a resource to the category and returns the stored record.
// When no id is given a temporary one of the form
// {category}_{epochMillis}_{random0-9999} is generated; it can be replaced
// with the backend assigned id later through UpdateItemID.
func (t *Tracker) Track(category model.Category, payload any, id ...string) *model.TrackedResource {
	now := t.now()

	var itemID string
	if len(id) > 0 && id[0] != "" {
		itemID = id[0]
	} else {
		itemID = GenerateID(category, now)
	}

	item := &model.TrackedResource{
		ID:        itemID,
		Category:  category,
		Payload:   payload,
		CreatedAt: now,
	}

	if _, ok := t.items[category]; !ok {
		t.categories = append(t.categories, category)
	}
	t.items[category] = append(t.items[category], item)

	t.logger.Debug().
		Str("category", string(category)).
		Str("id", itemID).
		Msg("Tracked resource")

	return item
}

// GenerateID returns a temporary resource id for the category.
func GenerateID(category model.Category, now time.Time) string {
	return fmt.Sprintf("%s_%d_%d", category, now.UnixMilli(), rand.Intn(10000))
}

// Items returns the tracked items in insertion order. Without a category
// all items are returned, grouped by category in first-seen order.
func (t *Tracker) Items(category ...model.Category) []*model.TrackedResource {
	if len(category) > 0 {
		return append([]*model.TrackedResource(nil), t.items[category[0]]...)
	}

	var all []*model.TrackedResource
	for _, c := range t.categories {
		all = append(all, t.items[c]...)
	}
	return all
}

// Item returns the first tracked item with the given id.
func (t *Tracker) Item(id string) (*model.TrackedResource, bool) {
	for _, c := range t.categories {
		for _, item := range t.items[c] {
			if item.ID == id {
				return item, true
			}
		}
	}
	return nil, false
}

// Pending returns the uncleaned items of a category.
func (t *Tracker) Pending(category model.Category) []*model.TrackedResource {
	var pending []*model.TrackedResource
	for _, item := range t.items[category] {
		if !item.Cleaned {
			pending = append(pending, item)
		}
	}
	return pending
}

// Categories returns the categories that have tracked items, in the order
// they were first seen.
func (t *Tracker) Categories() []model.Category {
	return append([]model.Category(nil), t.categories...)
}

// UpdateItemID replaces the id of the first item in the category whose id
// is tempID. Only the id changes. It reports whether an item was found.
func (t *Tracker) UpdateItemID(category model.Category, tempID, realID string) bool {
	for _, item := range t.items[category] {
		if item.ID == tempID {
			item.ID = realID
			t.logger.Debug().
				Str("category", string(category)).
				Str("temp_id", tempID).
				Str("id", realID).
				Msg("Updated resource id")
			return true
		}
	}

	t.logger.Warn().
		Str("category", string(category)).
		Str("temp_id", tempID).
		Msg("No tracked resource to update")
	return false
}

// Stats returns counts over the tracked items.
func (t *Tracker) Stats() Stats {
	stats := Stats{ByCategory: make(map[model.Category]int)}
	for _, c := range t.categories {
		for _, item := range t.items[c] {
			stats.Total++
			if item.Cleaned {
				stats.Cleaned++
			} else {
				stats.ByCategory[c]++
			}
		}
	}
	return stats
}

// Reset drops all tracked items.
func (t *Tracker) Reset() {
	t.items = make(map[model.Category][]*model.TrackedResource)
	t.categories = nil
	t.logger.Debug().Msg("Tracker reset")
}
