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
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the stored types. Field order is the wire order, so
// new fields may only be appended.
var (
	IDMUS      = idMUS{}
	ReceiptMUS = receiptMUS{}
)

var (
	_ mus.Serializer[ID]      = IDMUS
	_ mus.Serializer[Receipt] = ReceiptMUS
)

var vectorMUS = ord.NewSliceSer[float32](raw.Float32)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

// Timestamps are stored as Unix microseconds and decoded in UTC.
type timeMUS struct{}

func (timeMUS) Marshal(v time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(v.UnixMicro(), bs)
}

func (timeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func (timeMUS) Size(v time.Time) (size int) {
	return varint.Int64.Size(v.UnixMicro())
}

// amountMUS writes a presence flag followed by the value when there is one.
type amountMUS struct{}

func (amountMUS) Marshal(v *float64, bs []byte) (n int) {
	n = ord.Bool.Marshal(v != nil, bs)
	if v != nil {
		n += raw.Float64.Marshal(*v, bs[n:])
	}
	return n
}

func (amountMUS) Unmarshal(bs []byte) (v *float64, n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return nil, n, err
	}
	f, n1, err := raw.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	return &f, n, nil
}

func (amountMUS) Size(v *float64) (size int) {
	size = ord.Bool.Size(v != nil)
	if v != nil {
		size += raw.Float64.Size(*v)
	}
	return size
}

type receiptMUS struct{}

func (receiptMUS) Marshal(v Receipt, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	for _, s := range v.textFields() {
		n += ord.String.Marshal(s, bs[n:])
	}
	n += timeMUS{}.Marshal(v.PurchaseDate, bs[n:])
	n += amountMUS{}.Marshal(v.Amount, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += timeMUS{}.Marshal(v.InsertedAt, bs[n:])
	n += timeMUS{}.Marshal(v.UpdatedAt, bs[n:])
	return n + timeMUS{}.Marshal(v.EmbeddedAt, bs[n:])
}

func (receiptMUS) Unmarshal(bs []byte) (v Receipt, n int, err error) {
	var n1 int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	for _, field := range []*string{&v.OwnerID, &v.Description, &v.Brand, &v.Model, &v.Store, &v.Location, &v.WarrantyPeriod} {
		*field, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	if v.PurchaseDate, n1, err = (timeMUS{}).Unmarshal(bs[n:]); err != nil {
		n += n1
		return
	}
	n += n1
	if v.Amount, n1, err = (amountMUS{}).Unmarshal(bs[n:]); err != nil {
		n += n1
		return
	}
	n += n1
	if v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		n += n1
		return
	}
	n += n1
	if len(v.Vector) == 0 {
		v.Vector = nil
	}
	for _, field := range []*time.Time{&v.InsertedAt, &v.UpdatedAt, &v.EmbeddedAt} {
		*field, n1, err = timeMUS{}.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (receiptMUS) Size(v Receipt) (size int) {
	size = IDMUS.Size(v.Id)
	for _, s := range v.textFields() {
		size += ord.String.Size(s)
	}
	size += timeMUS{}.Size(v.PurchaseDate)
	size += amountMUS{}.Size(v.Amount)
	size += vectorMUS.Size(v.Vector)
	size += timeMUS{}.Size(v.InsertedAt)
	size += timeMUS{}.Size(v.UpdatedAt)
	return size + timeMUS{}.Size(v.EmbeddedAt)
}

func (s receiptMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// textFields lists the string fields in wire order.
func (r *Receipt) textFields() []string {
	return []string{r.OwnerID, r.Description, r.Brand, r.Model, r.Store, r.Location, r.WarrantyPeriod}
}
