// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errkind tags errors with a closed set of kinds at collaborator
// boundaries so retry decisions never depend on concrete error types.
package errkind

import (
	"context"
	"errors"
	"io/fs"
	"net"
)

type Kind string

const (
	Unknown   Kind = ""
	Transient Kind = "transient"
	Permanent Kind = "permanent"
	Cancelled Kind = "cancelled"
)

func (k Kind) String() string {
	if k == Unknown {
		return "unknown"
	}
	return string(k)
}

// Error carries a Kind alongside its cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func AsTransient(err error) error { return Wrap(Transient, err) }
func AsPermanent(err error) error { return Wrap(Permanent, err) }
func AsCancelled(err error) error { return Wrap(Cancelled, err) }

// Of reports the kind of err. The outermost explicit tag wins; untagged errors
// are classified from well-known sentinels.
func Of(err error) Kind {
	if err == nil {
		return Unknown
	}
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return Cancelled
	case errors.Is(err, context.DeadlineExceeded):
		return Transient
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission), errors.Is(err, fs.ErrInvalid):
		return Permanent
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Transient
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return Transient
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return Of(err) == kind
}
