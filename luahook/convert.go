package luahook

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	lua "github.com/yuin/gopher-lua"
)

// luaJSONGet implements json_get(json, path). Objects and arrays come back as
// their raw JSON text; a missing path is nil.
func luaJSONGet(L *lua.LState) int {
	doc := L.CheckString(1)
	path := L.CheckString(2)

	res := gjson.Get(doc, path)
	if !res.Exists() {
		L.Push(lua.LNil)
		return 1
	}

	switch res.Type {
	case gjson.String:
		L.Push(lua.LString(res.Str))
	case gjson.Number:
		L.Push(lua.LNumber(res.Num))
	case gjson.True:
		L.Push(lua.LTrue)
	case gjson.False:
		L.Push(lua.LFalse)
	case gjson.Null:
		L.Push(lua.LNil)
	default:
		L.Push(lua.LString(res.Raw))
	}
	return 1
}

// luaJSONSet implements json_set(json, path, value) and returns the new document.
func luaJSONSet(L *lua.LState) int {
	doc := L.CheckString(1)
	path := L.CheckString(2)
	value := toGo(L.Get(3), 0)

	out, err := sjson.Set(doc, path, value)
	if err != nil {
		L.RaiseError("json_set: %v", err)
		return 0
	}
	L.Push(lua.LString(out))
	return 1
}

const maxDepth = 32

// toGo converts a Lua value to something encoding/json can marshal. Tables
// with keys 1..n become slices; other tables become maps.
func toGo(v lua.LValue, depth int) any {
	if depth > maxDepth {
		return nil
	}
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if n := val.Len(); n > 0 {
			count := 0
			val.ForEach(func(_, _ lua.LValue) { count++ })
			if count == n {
				arr := make([]any, n)
				for i := 1; i <= n; i++ {
					arr[i-1] = toGo(val.RawGetInt(i), depth+1)
				}
				return arr
			}
		}
		m := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			m[k.String()] = toGo(v, depth+1)
		})
		return m
	default:
		return nil
	}
}

// toJSON encodes a Lua value as JSON.
func toJSON(v lua.LValue) (json.RawMessage, error) {
	b, err := json.Marshal(toGo(v, 0))
	if err != nil {
		return nil, fmt.Errorf("encode lua value: %w", err)
	}
	return b, nil
}

func optString(t *lua.LTable, field string) (string, bool, error) {
	v := t.RawGetString(field)
	switch s := v.(type) {
	case *lua.LNilType:
		return "", false, nil
	case lua.LString:
		return string(s), true, nil
	default:
		return "", false, fmt.Errorf("field %q must be a string, got %s", field, v.Type())
	}
}
