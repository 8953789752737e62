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

import "time"

// ValueKind tags an entry of Values.
type ValueKind string

const (
	KindString   ValueKind = "string"
	KindNumber   ValueKind = "number"
	KindBool     ValueKind = "bool"
	KindDuration ValueKind = "duration"
)

type value struct {
	kind ValueKind
	v    interface{}
}

// Values is a string-keyed bag for step-contributed data that has no field
// on Context. Every entry keeps its kind; getters refuse mismatches.
type Values struct {
	m map[string]value
}

func NewValues() Values {
	return Values{m: make(map[string]value)}
}

func (v *Values) set(key string, kind ValueKind, x interface{}) {
	if v.m == nil {
		v.m = make(map[string]value)
	}
	v.m[key] = value{kind: kind, v: x}
}

func (v *Values) SetString(key, s string) { v.set(key, KindString, s) }
func (v *Values) SetNumber(key string, f float64) { v.set(key, KindNumber, f) }
func (v *Values) SetBool(key string, b bool) { v.set(key, KindBool, b) }
func (v *Values) SetDuration(key string, d time.Duration) { v.set(key, KindDuration, d) }

func (v Values) get(key string, kind ValueKind) (interface{}, bool) {
	e, ok := v.m[key]
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.v, true
}

func (v Values) String(key string) (string, bool) {
	x, ok := v.get(key, KindString)
	if !ok {
		return "", false
	}
	return x.(string), true
}

func (v Values) Number(key string) (float64, bool) {
	x, ok := v.get(key, KindNumber)
	if !ok {
		return 0, false
	}
	return x.(float64), true
}

func (v Values) Bool(key string) (bool, bool) {
	x, ok := v.get(key, KindBool)
	if !ok {
		return false, false
	}
	return x.(bool), true
}

func (v Values) Duration(key string) (time.Duration, bool) {
	x, ok := v.get(key, KindDuration)
	if !ok {
		return 0, false
	}
	return x.(time.Duration), true
}

// Kind reports the kind stored under key.
func (v Values) Kind(key string) (ValueKind, bool) {
	e, ok := v.m[key]
	return e.kind, ok
}

func (v Values) Len() int { return len(v.m) }

// Raw copies the entries into a plain map. Durations become milliseconds.
func (v Values) Raw() map[string]interface{} {
	out := make(map[string]interface{}, len(v.m))
	for k, e := range v.m {
		if d, ok := e.v.(time.Duration); ok {
			out[k] = float64(d.Milliseconds())
			continue
		}
		out[k] = e.v
	}
	return out
}
