// Package schema renders a Go value's shape into a short human-readable
// description string, consumed as the optional contextSchema input to
// rlm.Engine.Completion (spec.md §4.6's "optionally render schema description
// from contextSchema").
package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// MaxDepth bounds recursive descent into nested structures, avoiding runaway
// output (and infinite loops on cyclic maps/slices of interfaces) for
// pathological inputs.
const MaxDepth = 4

// Describe renders value's shape as a short type description suitable for
// appending to the context metadata turn. It never errors on its own but
// returns ErrUnrenderable if value is a function, channel, or unsafe
// pointer, per spec.md §4.14's ContextSchemaError edge case.
func Describe(value any) (string, error) {
	if !isRenderable(value) {
		return "", ErrUnrenderable
	}
	var sb strings.Builder
	describe(&sb, reflect.ValueOf(value), 0)
	return sb.String(), nil
}

// ErrUnrenderable is returned by Describe when value's shape cannot be
// rendered into a description (functions, channels, unsafe pointers).
var ErrUnrenderable = fmt.Errorf("schema: value cannot be rendered into a description")

func isRenderable(value any) bool {
	if value == nil {
		return true
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return false
	default:
		return true
	}
}

func describe(sb *strings.Builder, v reflect.Value, depth int) {
	if !v.IsValid() {
		sb.WriteString("null")
		return
	}
	if depth > MaxDepth {
		sb.WriteString("...")
		return
	}

	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			sb.WriteString("null")
			return
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		sb.WriteString("string")
	case reflect.Bool:
		sb.WriteString("boolean")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		sb.WriteString("integer")
	case reflect.Float32, reflect.Float64:
		sb.WriteString("number")
	case reflect.Slice, reflect.Array:
		describeSequence(sb, v, depth)
	case reflect.Map:
		describeMap(sb, v, depth)
	case reflect.Struct:
		describeStruct(sb, v, depth)
	default:
		sb.WriteString(v.Kind().String())
	}
}

func describeSequence(sb *strings.Builder, v reflect.Value, depth int) {
	sb.WriteString("array<")
	if v.Len() == 0 {
		sb.WriteString("unknown")
	} else {
		describe(sb, v.Index(0), depth+1)
	}
	sb.WriteString(fmt.Sprintf(">[%d]", v.Len()))
}

func describeMap(sb *strings.Builder, v reflect.Value, depth int) {
	sb.WriteString("object{")
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface()) })
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		if i >= 20 {
			sb.WriteString(fmt.Sprintf("+ %d more", len(keys)-20))
			break
		}
		sb.WriteString(fmt.Sprint(k.Interface()))
		sb.WriteString(": ")
		describe(sb, v.MapIndex(k), depth+1)
	}
	sb.WriteString("}")
}

func describeStruct(sb *strings.Builder, v reflect.Value, depth int) {
	t := v.Type()
	sb.WriteString(t.Name())
	sb.WriteString("{")
	rendered := 0
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if rendered > 0 {
			sb.WriteString(", ")
		}
		rendered++
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		describe(sb, v.Field(i), depth+1)
	}
	sb.WriteString("}")
}
