package session

import (
	"encoding/json"
	"fmt"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/models"
)

// Frames are decoded with json.Decoder.UseNumber so the codec can tell
// integers from floats the way the wire contract requires. Every value
// reaching this file is therefore one of: json.Number, string, bool, nil,
// []interface{}, map[string]interface{}.

// -----------------------------------------------------------------------------
// Typed scalar extraction
// -----------------------------------------------------------------------------

func getInt(v interface{}) (int64, error) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("wrong json value: %s, expect integer", jsonText(v))
}

func getFloat(v interface{}) (float64, error) {
	if n, ok := v.(json.Number); ok {
		if _, err := n.Int64(); err != nil {
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
		}
	}
	return 0, fmt.Errorf("wrong json value: %s, expect float", jsonText(v))
}

// getNum accepts either integer or float.
func getNum(v interface{}) (float64, error) {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("wrong json value: %s, expect number", jsonText(v))
}

func getString(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("wrong json value: %s, expect string", jsonText(v))
}

func getBool(v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("wrong json value: %s, expect bool", jsonText(v))
}

func jsonText(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// -----------------------------------------------------------------------------
// Inbound parameter parsing
// -----------------------------------------------------------------------------

// refData is the slice of collaborators the codec needs to resolve a
// security tuple.
type refData struct {
	securities interfaces.ISecurityMaster
	accounts   interfaces.IAccountManager
}

// ParseParamScalar converts one wire node into a tagged scalar. Objects are
// the security-tuple form {src, sec, acc, side, qty}.
func ParseParamScalar(v interface{}, ref refData) (models.MParamValue, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return models.MParamValue{Kind: models.ParamInt, Int: i}, nil
		}
		f, err := t.Float64()
		if err != nil {
			return models.MParamValue{}, fmt.Errorf("wrong json value: %s, expect number", t.String())
		}
		return models.MParamValue{Kind: models.ParamFloat, Float: f}, nil
	case bool:
		return models.MParamValue{Kind: models.ParamBool, Bool: t}, nil
	case string:
		return models.MParamValue{Kind: models.ParamString, Str: t}, nil
	case map[string]interface{}:
		tuple, err := parseSecurityTuple(t, ref)
		if err != nil {
			return models.MParamValue{}, err
		}
		return models.MParamValue{Kind: models.ParamSecurity, Security: tuple}, nil
	}
	return models.MParamValue{}, nil
}

func parseSecurityTuple(obj map[string]interface{}, ref refData) (*models.MSecurityTuple, error) {
	tuple := &models.MSecurityTuple{}
	for key, val := range obj {
		switch key {
		case "qty":
			qty, err := getNum(val)
			if err != nil {
				return nil, err
			}
			tuple.Qty = qty
		case "side":
			sideStr, err := getString(val)
			if err != nil {
				return nil, err
			}
			side, ok := models.ParseOrderSide(sideStr)
			if !ok {
				return nil, fmt.Errorf("Unknown order side: %s", sideStr)
			}
			tuple.Side = side
		case "src":
			src, err := getString(val)
			if err != nil {
				return nil, err
			}
			tuple.Src = src
		case "sec":
			id, err := getInt(val)
			if err != nil {
				return nil, err
			}
			tuple.Sec = ref.securities.Get(id)
			if tuple.Sec == nil {
				return nil, fmt.Errorf("Unknown security id: %d", id)
			}
		case "acc":
			if n, ok := val.(json.Number); ok {
				id, err := n.Int64()
				if err != nil {
					return nil, fmt.Errorf("wrong json value: %s, expect integer", n.String())
				}
				tuple.Acc = ref.accounts.GetSubAccount(id)
				if tuple.Acc == nil {
					return nil, fmt.Errorf("Unknown account id: %d", id)
				}
			} else if name, ok := val.(string); ok {
				tuple.Acc = ref.accounts.GetSubAccountByName(name)
				if tuple.Acc == nil {
					return nil, fmt.Errorf("Unknown account: %s", name)
				}
			}
		}
	}
	if tuple.Qty <= 0 {
		return nil, fmt.Errorf("Empty quantity")
	}
	if tuple.Side == models.SideUnknown {
		return nil, fmt.Errorf("Empty side")
	}
	if tuple.Sec == nil {
		return nil, fmt.Errorf("Empty security")
	}
	if tuple.Acc == nil {
		return nil, fmt.Errorf("Empty account")
	}
	return tuple, nil
}

// ParseParamValue converts a wire node into a value; arrays become vectors
// of scalars.
func ParseParamValue(v interface{}, ref refData) (models.MParamValue, error) {
	if arr, ok := v.([]interface{}); ok {
		vec := make([]models.MParamValue, 0, len(arr))
		for _, item := range arr {
			scalar, err := ParseParamScalar(item, ref)
			if err != nil {
				return models.MParamValue{}, err
			}
			vec = append(vec, scalar)
		}
		return models.MParamValue{Kind: models.ParamVector, Vector: vec}, nil
	}
	return ParseParamScalar(v, ref)
}

// ParseParams converts the wire object form of an algo parameter map.
func ParseParams(v interface{}, ref refData) (models.MParamMap, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("wrong json value: %s, expect object", jsonText(v))
	}
	m := make(models.MParamMap, len(obj))
	for key, val := range obj {
		pv, err := ParseParamValue(val, ref)
		if err != nil {
			return nil, err
		}
		m[key] = pv
	}
	return m, nil
}

// -----------------------------------------------------------------------------
// Outbound encoding
// -----------------------------------------------------------------------------

func jsonifyScalar(v models.MParamValue) []interface{} {
	switch v.Kind {
	case models.ParamBool:
		return []interface{}{"bool", v.Bool}
	case models.ParamInt:
		return []interface{}{"int", v.Int}
	case models.ParamFloat:
		return []interface{}{"float", v.Float}
	case models.ParamString:
		return []interface{}{"string", v.Str}
	case models.ParamSecurity:
		// the consumer renders its own widget for unset tuples
		return []interface{}{"security"}
	}
	return nil
}

// Jsonify renders a parameter value as the tagged wire form, to be appended
// to an enclosing array.
func Jsonify(v models.MParamValue) []interface{} {
	if out := jsonifyScalar(v); out != nil {
		return out
	}
	if v.Kind == models.ParamVector {
		pairs := make([]interface{}, 0, len(v.Vector))
		for _, item := range v.Vector {
			if pair := jsonifyScalar(item); pair != nil {
				pairs = append(pairs, pair)
			}
		}
		return []interface{}{"vector", pairs}
	}
	return nil
}
