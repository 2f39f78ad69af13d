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

package storage

import (
	"errors"
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/poiesic/receiptrag/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, decodeError("id", err)
	}
	return id, nil
}

// MarshalReceipt serializes a Receipt to bytes.
func MarshalReceipt(receipt *core.Receipt) []byte {
	buf := make([]byte, core.ReceiptMUS.Size(*receipt))
	core.ReceiptMUS.Marshal(*receipt, buf)
	return buf
}

// UnmarshalReceipt deserializes a Receipt from bytes.
func UnmarshalReceipt(data []byte) (*core.Receipt, error) {
	receipt, _, err := core.ReceiptMUS.Unmarshal(data)
	if err != nil {
		return nil, decodeError("receipt", err)
	}
	return &receipt, nil
}

func decodeError(what string, err error) error {
	if errors.Is(err, mus.ErrTooSmallByteSlice) {
		return fmt.Errorf("%w: %s: %w", ErrTruncatedData, what, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, err)
}
