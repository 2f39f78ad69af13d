// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"time"

	"github.com/poiesic/receiptrag/core"
)

type sample struct {
	description, brand, model, store, location string
	date                                       string
	amount                                     float64
	warranty                                   string
}

var samples = []sample{
	{"Laptop Bag", "Targus", "TSB883", "Best Buy", "Seattle, WA", "2024-02-10", 52.30, "1 year"},
	{"MacBook Air", "Apple", "M2 13-inch", "Apple Store", "Bellevue, WA", "2024-01-15", 1199.00, "1 year"},
	{"Blender", "Vitamix", "E310", "Costco", "Kirkland, WA", "2023-11-25", 349.99, "5 years"},
	{"Noise Cancelling Headphones", "Sony", "WH-1000XM5", "Amazon", "", "2023-12-02", 348.00, "1 year"},
	{"Running Shoes", "Nike", "Pegasus 40", "REI", "Seattle, WA", "2024-03-08", 130.00, ""},
	{"Coffee Grinder", "Baratza", "Encore", "Williams Sonoma", "Seattle, WA", "2023-10-14", 149.95, "1 year"},
	{"4K Television", "LG", "OLED55C3", "Best Buy", "Tukwila, WA", "2023-11-24", 1296.99, "2 years"},
	{"Desk Lamp", "IKEA", "FORSA", "IKEA", "Renton, WA", "2024-02-20", 24.99, ""},
	{"Electric Toothbrush", "Philips", "Sonicare 4100", "Target", "Seattle, WA", "2024-01-03", 49.99, "2 years"},
	{"Backpack", "Osprey", "Daylite Plus", "REI", "Seattle, WA", "2024-04-01", 65.00, "Lifetime"},
	{"Wireless Mouse", "Logitech", "MX Master 3S", "Amazon", "", "2024-02-28", 99.99, "1 year"},
	{"Cast Iron Skillet", "Lodge", "L8SK3", "Target", "Seattle, WA", "2023-09-17", 29.90, ""},
}

// sampleReceipts returns the demo receipt set for owner.
func sampleReceipts(owner string) []*core.Receipt {
	receipts := make([]*core.Receipt, 0, len(samples))
	for _, s := range samples {
		date, _ := time.Parse(time.DateOnly, s.date)
		amount := s.amount
		receipts = append(receipts, &core.Receipt{
			OwnerID:        owner,
			Description:    s.description,
			Brand:          s.brand,
			Model:          s.model,
			Store:          s.store,
			Location:       s.location,
			PurchaseDate:   date,
			Amount:         &amount,
			WarrantyPeriod: s.warranty,
		})
	}
	return receipts
}
