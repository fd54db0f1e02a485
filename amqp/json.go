// Copyright 2025 The amqpwire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package amqp

import (
	"encoding/hex"

	"github.com/goccy/go-json"
)

// MarshalJSON 输出诊断用 JSON 形式 携带类型标签 不可逆
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.jsonView())
}

func (v Value) jsonView() any {
	type tagged struct {
		Type  string `json:"type"`
		Value any    `json:"value"`
	}

	switch v.kind {
	case KindNull:
		return tagged{Type: "null"}
	case KindBool:
		return tagged{Type: "bool", Value: v.b}
	case KindUbyte, KindUshort, KindUint, KindUlong:
		return tagged{Type: v.kind.String(), Value: v.u64}
	case KindByte, KindShort, KindInt, KindLong, KindTimestamp:
		return tagged{Type: v.kind.String(), Value: v.i64}
	case KindChar:
		return tagged{Type: "char", Value: string(rune(v.i64))}
	case KindFloat, KindDouble:
		return tagged{Type: v.kind.String(), Value: v.f64}
	case KindString, KindSymbol:
		return tagged{Type: v.kind.String(), Value: v.str}
	case KindBinary:
		return tagged{Type: "binary", Value: hex.EncodeToString(v.bin)}
	case KindUUID:
		s, _ := v.UUIDString()
		return tagged{Type: "uuid", Value: s}

	case KindList, KindArray:
		items := make([]any, 0, len(v.items))
		for i := range v.items {
			items = append(items, v.items[i].jsonView())
		}
		return tagged{Type: v.kind.String(), Value: items}

	case KindMap:
		type entry struct {
			Key   any `json:"key"`
			Value any `json:"value"`
		}
		entries := make([]entry, 0, len(v.items)/2)
		for i := 0; i < len(v.items); i += 2 {
			entries = append(entries, entry{
				Key:   v.items[i].jsonView(),
				Value: v.items[i+1].jsonView(),
			})
		}
		return tagged{Type: "map", Value: entries}

	case KindDescribed:
		return tagged{Type: "described", Value: map[string]any{
			"descriptor": v.desc.jsonView(),
			"value":      v.items[0].jsonView(),
		}}
	}
	return tagged{Type: "unknown"}
}
