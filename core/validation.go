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

package core

import (
	"fmt"
	"strings"
	"time"
)

// ValidateReceipt validates a Receipt before it is written.
// A receipt without an owner is never accepted.
func ValidateReceipt(receipt *Receipt) error {
	if receipt == nil {
		return fmt.Errorf("%w: receipt is nil", ErrInvalidReceipt)
	}

	if err := ValidateOwnerID(receipt.OwnerID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReceipt, err)
	}

	if receipt.Amount != nil && *receipt.Amount < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidReceipt, ErrNegativeAmount)
	}

	if !receipt.PurchaseDate.IsZero() && !IsValidTimestamp(receipt.PurchaseDate) {
		return fmt.Errorf("%w: %w", ErrInvalidReceipt, ErrInvalidPurchaseDate)
	}

	return nil
}

// ValidateOwnerID checks that an owner id is usable as a scope.
func ValidateOwnerID(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrMissingOwner
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is not in the future.
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
