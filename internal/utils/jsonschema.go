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

package utils

import (
	"github.com/invopop/jsonschema"
)

// GetJSONSchema renders the JSON schema of v's type for a prompt. The root
// type is inlined; nested types, which may be recursive, live in $defs.
func GetJSONSchema(v interface{}) string {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(v)
	out, err := MarshalJSONIndent(s)
	if err != nil {
		panic(err)
	}
	return out
}
