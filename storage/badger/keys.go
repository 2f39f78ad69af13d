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

package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/receiptrag/core"
)

// Key prefixes for different data types
const (
	receiptPrefix        = "rcpt"
	receiptOwnerPrefix   = "rcpto"
	receiptPendingPrefix = "rcptp"
	receiptBlankPrefix   = "rcptb"
	receiptIDSeq         = "rcptseq"
)

// ownerSeparator ends the owner segment of index keys so that owner "al"
// never scans into owner "alice".
const ownerSeparator = 0x00

// makeReceiptKey generates a key for a receipt by ID.
func makeReceiptKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", receiptPrefix, id))
}

// makeOwnerIndexKey generates a composite key for the owner index.
// Format: prefix:owner\x00id
func makeOwnerIndexKey(ownerID string, id core.ID) []byte {
	return appendID(makeOwnerIndexPrefix(ownerID), id)
}

// makeOwnerIndexPrefix generates the scan prefix for one owner's receipts.
func makeOwnerIndexPrefix(ownerID string) []byte {
	return makeOwnerScopedPrefix(receiptOwnerPrefix, ownerID)
}

// makePendingIndexKey generates a key in the index of receipts without an embedding.
// Format: prefix:owner\x00id
func makePendingIndexKey(ownerID string, id core.ID) []byte {
	return appendID(makePendingIndexPrefix(ownerID), id)
}

// makePendingIndexPrefix generates the scan prefix for one owner's unembedded receipts.
func makePendingIndexPrefix(ownerID string) []byte {
	return makeOwnerScopedPrefix(receiptPendingPrefix, ownerID)
}

// makeBlankIndexKey generates a key in the index of receipts with no text to embed.
func makeBlankIndexKey(ownerID string, id core.ID) []byte {
	return appendID(makeBlankIndexPrefix(ownerID), id)
}

func makeBlankIndexPrefix(ownerID string) []byte {
	return makeOwnerScopedPrefix(receiptBlankPrefix, ownerID)
}

func makeOwnerScopedPrefix(prefix, ownerID string) []byte {
	buf := make([]byte, 0, len(prefix)+1+len(ownerID)+1)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = append(buf, ownerID...)
	return append(buf, ownerSeparator)
}

// appendID writes the ID in BigEndian order so lexicographic sort follows insertion order.
func appendID(prefix []byte, id core.ID) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
