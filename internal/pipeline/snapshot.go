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

package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// Snapshot is an immutable, kind-tagged artifact a step publishes for later
// steps. Readers must match the Kind before trusting Payload.
type Snapshot struct {
	Kind    string // e.g. "catalogue", "structure"
	Hash    string // hex-encoded sha256 of raw bytes
	Payload any
}

// NewSnapshot creates a snapshot from a payload and its serialized form.
// raw is used only to compute the hash.
func NewSnapshot(kind string, payload any, raw []byte) *Snapshot {
	h := sha256.Sum256(raw)
	return &Snapshot{
		Kind:    kind,
		Hash:    hex.EncodeToString(h[:]),
		Payload: payload,
	}
}

// Publish records snap as the output of step. A later attempt of the same
// step replaces its own output; nothing is ever removed.
func (c *Context) Publish(step string, snap *Snapshot) {
	if snap == nil {
		return
	}
	if c.outputs == nil {
		c.outputs = make(map[string]*Snapshot)
	}
	c.outputs[step] = snap
}

// Snapshot returns the raw output published by step.
func (c *Context) Snapshot(step string) (*Snapshot, bool) {
	s, ok := c.outputs[step]
	return s, ok
}

// Output returns the payload published by step if it carries the given kind
// and has type T.
func Output[T any](c *Context, step, kind string) (T, bool) {
	var zero T
	s, ok := c.Snapshot(step)
	if !ok || s.Kind != kind {
		return zero, false
	}
	v, ok := s.Payload.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
