// Package codec translates values between Go and script.
//
// Values cross the boundary as tagged JSON. Every node is an array whose
// first element is a tag:
//
//	["u"]                         undefined
//	["z"]                         null
//	["b", true]                   boolean
//	["n", 1.5]                    finite number
//	["f", "NaN"]                  NaN, Infinity, -Infinity or -0
//	["s", "text"]                 string
//	["a", [node, ...]]            array
//	["o", [["key", node], ...]]   object, in property order
//
// Tagging keeps undefined distinct from null and lets non-finite numbers
// survive, neither of which plain JSON can express.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cryguy/jsctx/internal/core"
)

// UndefinedType is the type of Undefined.
type UndefinedType struct{}

// Undefined is the Go representation of script undefined. It is distinct
// from nil, which stands for null.
var Undefined = UndefinedType{}

func (UndefinedType) String() string { return "undefined" }

// MarshalJSON renders undefined as null, matching JSON.stringify in arrays.
func (UndefinedType) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MaxSafeInteger is the largest integer a script number holds exactly.
const MaxSafeInteger = 1<<53 - 1

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Encode converts v into its wire form. root names the value in error paths.
func Encode(v any, root string) ([]byte, error) {
	e := &encoder{path: []string{root}, visiting: make(map[visitKey]struct{})}
	if err := e.encode(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// EncodeArgs encodes a call's argument list as an array node.
func EncodeArgs(args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return Encode(args, "args")
}

type visitKey struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type encoder struct {
	buf      bytes.Buffer
	path     []string
	visiting map[visitKey]struct{}
}

func (e *encoder) fail(format string, args ...any) error {
	return &core.ConversionError{
		Direction: core.DirEncode,
		Path:      strings.Join(e.path, ""),
		Reason:    fmt.Sprintf(format, args...),
	}
}

func (e *encoder) push(seg string) { e.path = append(e.path, seg) }
func (e *encoder) pop()            { e.path = e.path[:len(e.path)-1] }

func indexSeg(i int) string { return "[" + strconv.Itoa(i) + "]" }

func keySeg(k string) string {
	if identRe.MatchString(k) {
		return "." + k
	}
	return "[" + strconv.Quote(k) + "]"
}

func (e *encoder) tag(t string) {
	e.buf.WriteString(`["`)
	e.buf.WriteString(t)
	e.buf.WriteString(`"]`)
}

func (e *encoder) str(s string) {
	e.buf.WriteString(`["s",`)
	writeJSONString(&e.buf, s)
	e.buf.WriteByte(']')
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

func (e *encoder) float(f float64) {
	switch {
	case math.IsNaN(f):
		e.buf.WriteString(`["f","NaN"]`)
	case math.IsInf(f, 1):
		e.buf.WriteString(`["f","Infinity"]`)
	case math.IsInf(f, -1):
		e.buf.WriteString(`["f","-Infinity"]`)
	case f == 0 && math.Signbit(f):
		e.buf.WriteString(`["f","-0"]`)
	default:
		e.buf.WriteString(`["n",`)
		e.buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		e.buf.WriteByte(']')
	}
}

// enter guards against cycles through pointers, maps and slices.
func (e *encoder) enter(v reflect.Value) (func(), error) {
	var key visitKey
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		key = visitKey{ptr: uintptr(v.UnsafePointer()), typ: v.Type()}
	case reflect.Slice:
		key = visitKey{ptr: uintptr(v.UnsafePointer()), typ: v.Type(), n: v.Len()}
	default:
		return func() {}, nil
	}
	if _, ok := e.visiting[key]; ok {
		return nil, e.fail("cyclic reference")
	}
	e.visiting[key] = struct{}{}
	return func() { delete(e.visiting, key) }, nil
}

func (e *encoder) encode(v reflect.Value) error {
	if !v.IsValid() {
		e.tag("z")
		return nil
	}

	switch x := v.Interface().(type) {
	case UndefinedType:
		e.tag("u")
		return nil
	case *Object:
		if x == nil {
			e.tag("z")
			return nil
		}
		leave, err := e.enter(reflect.ValueOf(x))
		if err != nil {
			return err
		}
		defer leave()
		return e.object(x)
	case time.Time:
		e.str(x.UTC().Format(time.RFC3339Nano))
		return nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return e.fail("invalid number %q", x.String())
		}
		e.float(f)
		return nil
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			e.buf.WriteString(`["b",true]`)
		} else {
			e.buf.WriteString(`["b",false]`)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := v.Int()
		if n > MaxSafeInteger || n < -MaxSafeInteger {
			return e.fail("integer %d exceeds the safe script range", n)
		}
		e.buf.WriteString(`["n",`)
		e.buf.WriteString(strconv.FormatInt(n, 10))
		e.buf.WriteByte(']')
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := v.Uint()
		if n > MaxSafeInteger {
			return e.fail("integer %d exceeds the safe script range", n)
		}
		e.buf.WriteString(`["n",`)
		e.buf.WriteString(strconv.FormatUint(n, 10))
		e.buf.WriteByte(']')
	case reflect.Float32, reflect.Float64:
		e.float(v.Float())
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return e.fail("string is not valid UTF-8")
		}
		e.str(v.String())
	case reflect.Interface:
		if v.IsNil() {
			e.tag("z")
			return nil
		}
		return e.encode(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			e.tag("z")
			return nil
		}
		leave, err := e.enter(v)
		if err != nil {
			return err
		}
		defer leave()
		return e.encode(v.Elem())
	case reflect.Slice:
		if v.IsNil() {
			e.buf.WriteString(`["a",[]]`)
			return nil
		}
		leave, err := e.enter(v)
		if err != nil {
			return err
		}
		defer leave()
		return e.array(v)
	case reflect.Array:
		return e.array(v)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return e.fail("map key type %s is not a string", v.Type().Key())
		}
		if v.IsNil() {
			e.tag("z")
			return nil
		}
		leave, err := e.enter(v)
		if err != nil {
			return err
		}
		defer leave()
		return e.mapping(v)
	case reflect.Struct:
		return e.structure(v)
	case reflect.Func:
		return e.fail("function values are not representable")
	case reflect.Chan:
		return e.fail("channel values are not representable")
	case reflect.Complex64, reflect.Complex128:
		return e.fail("complex numbers are not representable")
	default:
		return e.fail("%s values are not representable", v.Kind())
	}
	return nil
}

func (e *encoder) array(v reflect.Value) error {
	e.buf.WriteString(`["a",[`)
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.push(indexSeg(i))
		if err := e.encode(v.Index(i)); err != nil {
			return err
		}
		e.pop()
	}
	e.buf.WriteString(`]]`)
	return nil
}

func (e *encoder) entry(first bool, key string, v reflect.Value) error {
	if !utf8.ValidString(key) {
		return e.fail("key %q is not valid UTF-8", key)
	}
	if !first {
		e.buf.WriteByte(',')
	}
	e.buf.WriteByte('[')
	writeJSONString(&e.buf, key)
	e.buf.WriteByte(',')
	e.push(keySeg(key))
	if err := e.encode(v); err != nil {
		return err
	}
	e.pop()
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) object(o *Object) error {
	e.buf.WriteString(`["o",[`)
	for i, k := range o.keys {
		if err := e.entry(i == 0, k, reflect.ValueOf(o.values[k])); err != nil {
			return err
		}
	}
	e.buf.WriteString(`]]`)
	return nil
}

func (e *encoder) mapping(v reflect.Value) error {
	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	e.buf.WriteString(`["o",[`)
	for i, k := range keys {
		kv := reflect.ValueOf(k).Convert(v.Type().Key())
		if err := e.entry(i == 0, k, v.MapIndex(kv)); err != nil {
			return err
		}
	}
	e.buf.WriteString(`]]`)
	return nil
}

func (e *encoder) structure(v reflect.Value) error {
	t := v.Type()
	e.buf.WriteString(`["o",[`)
	first := true
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		omitEmpty := false
		if tag, ok := f.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" && len(parts) == 1 {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}
		fv := v.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		if err := e.entry(first, name, fv); err != nil {
			return err
		}
		first = false
	}
	e.buf.WriteString(`]]`)
	return nil
}

// Decode converts a wire value into the canonical Go subset: nil, Undefined,
// bool, int64, float64, string, []any and *Object.
func Decode(wire []byte) (any, error) {
	return DecodeAt(wire, "result")
}

// DecodeAt is Decode with a custom root name for error paths.
func DecodeAt(wire []byte, root string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(wire))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &core.ConversionError{
			Direction: core.DirDecode,
			Path:      root,
			Reason:    "malformed wire value: " + err.Error(),
		}
	}
	return decodeNode(raw, root)
}

func decodeFail(path, format string, args ...any) error {
	return &core.ConversionError{Direction: core.DirDecode, Path: path, Reason: fmt.Sprintf(format, args...)}
}

func decodeNode(raw any, path string) (any, error) {
	node, ok := raw.([]any)
	if !ok || len(node) == 0 {
		return nil, decodeFail(path, "node is not a tagged array")
	}
	tag, ok := node[0].(string)
	if !ok {
		return nil, decodeFail(path, "node tag is not a string")
	}
	switch tag {
	case "u":
		return Undefined, nil
	case "z":
		return nil, nil
	case "b":
		if len(node) == 2 {
			if b, ok := node[1].(bool); ok {
				return b, nil
			}
		}
	case "s":
		if len(node) == 2 {
			if s, ok := node[1].(string); ok {
				return s, nil
			}
		}
	case "n":
		if len(node) == 2 {
			if n, ok := node[1].(json.Number); ok {
				return decodeNumber(n, path)
			}
		}
	case "f":
		if len(node) == 2 {
			switch node[1] {
			case "NaN":
				return math.NaN(), nil
			case "Infinity":
				return math.Inf(1), nil
			case "-Infinity":
				return math.Inf(-1), nil
			case "-0":
				return math.Copysign(0, -1), nil
			}
		}
	case "a":
		if len(node) == 2 {
			if items, ok := node[1].([]any); ok {
				out := make([]any, len(items))
				for i, item := range items {
					v, err := decodeNode(item, path+indexSeg(i))
					if err != nil {
						return nil, err
					}
					out[i] = v
				}
				return out, nil
			}
		}
	case "o":
		if len(node) == 2 {
			if entries, ok := node[1].([]any); ok {
				obj := NewObject()
				for _, entry := range entries {
					pair, ok := entry.([]any)
					if !ok || len(pair) != 2 {
						return nil, decodeFail(path, "malformed object entry")
					}
					key, ok := pair[0].(string)
					if !ok {
						return nil, decodeFail(path, "object key is not a string")
					}
					v, err := decodeNode(pair[1], path+keySeg(key))
					if err != nil {
						return nil, err
					}
					obj.Set(key, v)
				}
				return obj, nil
			}
		}
	default:
		return nil, decodeFail(path, "unknown tag %q", tag)
	}
	return nil, decodeFail(path, "malformed %q node", tag)
}

func decodeNumber(n json.Number, path string) (any, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		if i <= MaxSafeInteger && i >= -MaxSafeInteger {
			return i, nil
		}
		return float64(i), nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return nil, decodeFail(path, "invalid number %q", n.String())
	}
	if f == math.Trunc(f) && math.Abs(f) <= MaxSafeInteger && !(f == 0 && math.Signbit(f)) {
		return int64(f), nil
	}
	return f, nil
}
