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
	"errors"
	"fmt"
)

var (
	// ErrInvalidReceipt indicates a Receipt failed validation.
	ErrInvalidReceipt = errors.New("invalid receipt")

	// ErrMissingOwner indicates the OwnerID field is empty.
	ErrMissingOwner = errors.New("owner id cannot be empty")

	// ErrNegativeAmount indicates an Amount below zero.
	ErrNegativeAmount = errors.New("amount cannot be negative")

	// ErrInvalidPurchaseDate indicates a purchase date in the future.
	ErrInvalidPurchaseDate = errors.New("purchase date cannot be in the future")

	// ErrConfiguration indicates a missing endpoint, credential or model setting.
	// It is never retried and is the only failure surfaced by a search.
	ErrConfiguration = errors.New("configuration error")
)

// FailureKind classifies why a call to an external service did not produce a usable value.
type FailureKind int

const (
	// FailureTransport is a network, timeout or non-success status failure.
	FailureTransport FailureKind = iota + 1
	// FailureConfiguration is a missing endpoint, credential or model setting.
	FailureConfiguration
	// FailureEmptyResponse is a successful call that returned nothing usable.
	FailureEmptyResponse
	// FailureMalformed is a response that could not be decoded or had the wrong shape.
	FailureMalformed
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureConfiguration:
		return "configuration"
	case FailureEmptyResponse:
		return "empty-response"
	case FailureMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ServiceError is the failure outcome of a call to an embedding, similarity
// or completion service.
type ServiceError struct {
	Service string
	Kind    FailureKind
	Message string
	Err     error
}

// NewServiceError builds a ServiceError.
func NewServiceError(service string, kind FailureKind, message string, err error) *ServiceError {
	return &ServiceError{Service: service, Kind: kind, Message: message, Err: err}
}

func (e *ServiceError) Error() string {
	msg := e.Service + ": " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is makes configuration failures match ErrConfiguration.
func (e *ServiceError) Is(target error) bool {
	return target == ErrConfiguration && e.Kind == FailureConfiguration
}

// FailureKindOf extracts the FailureKind carried by err, if any.
func FailureKindOf(err error) (FailureKind, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsConfigurationError reports whether err is, or wraps, a configuration failure.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
