package debugui

import (
	"fmt"
	"reflect"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/kiln/ecs"
)

// ComponentInspector shows and edits the components of one entity. Edits are written
// in place and stamped changed so change filters pick them up.
type ComponentInspector struct {
	entity ecs.EntityId
}

func (ci *ComponentInspector) Render(w *ecs.World, selected ecs.EntityId) {
	if !imgui.BeginV("Component Inspector", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}
	defer imgui.End()

	ci.entity = selected
	if ci.entity.IsZero() {
		imgui.Text("No entity selected")
		return
	}

	loc, ok := w.LocationOf(ci.entity)
	archetype := w.Archetype(loc.Archetype)
	if !ok || archetype == nil {
		imgui.Text(fmt.Sprintf("Entity %s is not alive", ci.entity))
		return
	}

	imgui.Text(fmt.Sprintf("Entity: %s", ci.entity))
	imgui.Text(fmt.Sprintf("Archetype: %d (row %d)", loc.Archetype, loc.Row))
	imgui.Separator()

	for _, compType := range archetype.Types() {
		component := w.Get(ci.entity, compType)
		if component == nil {
			continue
		}

		if imgui.TreeNodeStr(compType.String()) {
			val := reflect.ValueOf(component).Elem()
			edited := false
			if compType.Kind() == reflect.Struct {
				for _, field := range globalReflectionCache.GetFields(compType) {
					edited = ci.renderField(field.Name, val.Field(field.Index), field) || edited
				}
			} else {
				edited = ci.renderField(compType.Name(), val, FieldInfo{Name: compType.Name(), Type: compType})
			}
			if edited {
				w.MarkChanged(ci.entity, compType)
			}
			imgui.TreePop()
		}
	}
}

// renderField draws one field and reports whether the user changed it.
func (ci *ComponentInspector) renderField(name string, val reflect.Value, field FieldInfo) bool {
	if field.IsPointer {
		if val.IsNil() {
			imgui.Text(fmt.Sprintf("%s: nil", name))
			return false
		}
		val = val.Elem()
	}
	if !val.IsValid() {
		imgui.Text(fmt.Sprintf("%s: <invalid>", name))
		return false
	}

	label := fmt.Sprintf("##%s", name)
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var v int32
		if val.CanInt() {
			v = int32(val.Int())
		} else {
			v = int32(val.Uint())
		}
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputInt(label, &v) {
			return assign(val, int64(v))
		}

	case reflect.Float32, reflect.Float64:
		v := float32(val.Float())
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputFloat(label, &v) {
			return assign(val, float64(v))
		}

	case reflect.Bool:
		v := val.Bool()
		if imgui.Checkbox(name, &v) {
			return assign(val, v)
		}

	case reflect.String:
		v := val.String()
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(200)
		if imgui.InputTextWithHint(label, "", &v, imgui.InputTextFlagsNone, nil) {
			return assign(val, v)
		}

	case reflect.Array:
		edited := false
		if imgui.TreeNodeStr(fmt.Sprintf("%s [%d]", name, val.Len())) {
			for i := 0; i < val.Len(); i++ {
				elemName := fmt.Sprintf("%s[%d]", name, i)
				edited = ci.renderField(elemName, val.Index(i), FieldInfo{Name: elemName, Type: val.Type().Elem()}) || edited
			}
			imgui.TreePop()
		}
		return edited

	case reflect.Struct:
		edited := false
		if imgui.TreeNodeStr(name) {
			for _, nf := range globalReflectionCache.GetFields(val.Type()) {
				edited = ci.renderField(nf.Name, val.Field(nf.Index), nf) || edited
			}
			imgui.TreePop()
		}
		return edited

	case reflect.Slice:
		imgui.Text(fmt.Sprintf("%s: [%d items]", name, val.Len()))

	case reflect.Map:
		imgui.Text(fmt.Sprintf("%s: map[%d items]", name, val.Len()))

	default:
		if val.CanInterface() {
			imgui.Text(fmt.Sprintf("%s: %v", name, val.Interface()))
		} else {
			imgui.Text(fmt.Sprintf("%s: <%s>", name, val.Type()))
		}
	}
	return false
}

// assign writes an edited value into field, converting between the widget's value type
// and the field's kind. It reports false when the field is not settable or the value
// does not fit.
func assign(field reflect.Value, value any) bool {
	if !field.CanSet() {
		return false
	}

	switch v := value.(type) {
	case int64:
		switch {
		case field.CanInt():
			if field.OverflowInt(v) {
				return false
			}
			field.SetInt(v)
		case field.CanUint():
			if v < 0 || field.OverflowUint(uint64(v)) {
				return false
			}
			field.SetUint(uint64(v))
		default:
			return false
		}
	case float64:
		if !field.CanFloat() || field.OverflowFloat(v) {
			return false
		}
		field.SetFloat(v)
	case bool:
		if field.Kind() != reflect.Bool {
			return false
		}
		field.SetBool(v)
	case string:
		if field.Kind() != reflect.String {
			return false
		}
		field.SetString(v)
	default:
		return false
	}
	return true
}
