package ecs

import (
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
)

// System represents a behavior that operates on entities with specific components.
// User-defined systems implement this interface on a struct whose exported fields may
// be system inputs (Query, Res, ResMut, EventReader, EventWriter, Commands, Local,
// WorldMut, WorldRef); the scheduler initializes them at registration. Other fields
// are custom state that persists between frames.
type System interface {
	Execute(frame *UpdateFrame)
}

// FallibleSystem is a system that can fail. The scheduler calls Run instead of Execute
// and stops the stage on the first error.
type FallibleSystem interface {
	System
	Run(frame *UpdateFrame) error
}

// SystemInitializer is implemented by systems that need setup once their inputs exist.
type SystemInitializer interface {
	Init(w *World) error
}

// maxSystemParams is the largest number of inputs a function system may take.
const maxSystemParams = 12

var (
	updateFrameType = reflect.TypeFor[*UpdateFrame]()
	errorType       = reflect.TypeFor[error]()
	paramType       = reflect.TypeFor[systemParam]()
)

// ErrInvalidSystem is returned when a value cannot be turned into a system.
var ErrInvalidSystem = eris.New("invalid system")

// funcSystem adapts a plain function whose parameters are pointers to system inputs,
// for example:
//
//	func move(frame *ecs.UpdateFrame, q *ecs.Query[movers], gravity *ecs.Res[Gravity]) error
//
// Each input is allocated once at registration and reused on every run.
type funcSystem struct {
	name       string
	fn         reflect.Value
	args       []reflect.Value
	frameArg   int
	returnsErr bool
}

// SystemFunc wraps fn as a system. fn takes at most 12 parameters, each a pointer to a
// system input or *UpdateFrame, and returns nothing or an error.
func SystemFunc(fn any) System {
	value := reflect.ValueOf(fn)
	return &funcSystem{
		name:     funcName(value),
		fn:       value,
		frameArg: -1,
	}
}

func funcName(value reflect.Value) string {
	if !value.IsValid() {
		return "<nil>"
	}
	if value.Kind() != reflect.Func {
		return value.Type().String()
	}
	name := filepath.Base(runtime.FuncForPC(value.Pointer()).Name())
	// method values carry a -fm suffix
	return strings.TrimSuffix(name, "-fm")
}

// Execute runs the function outside the scheduler and panics if it returns an error.
func (s *funcSystem) Execute(frame *UpdateFrame) {
	if err := s.Run(frame); err != nil {
		panic(err)
	}
}

func (s *funcSystem) Run(frame *UpdateFrame) error {
	if s.frameArg >= 0 {
		s.args[s.frameArg] = reflect.ValueOf(frame)
	}
	out := s.fn.Call(s.args)
	if s.returnsErr && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

func (s *funcSystem) initFunc(cell *worldCell) ([]systemParam, error) {
	if !s.fn.IsValid() || s.fn.Kind() != reflect.Func {
		return nil, eris.Wrapf(ErrInvalidSystem, "%s is not a function", s.name)
	}
	fnType := s.fn.Type()
	if fnType.NumIn() > maxSystemParams {
		return nil, eris.Wrapf(ErrInvalidSystem, "%s takes %d inputs, at most %d are supported",
			s.name, fnType.NumIn(), maxSystemParams)
	}
	switch {
	case fnType.NumOut() == 0:
	case fnType.NumOut() == 1 && fnType.Out(0) == errorType:
		s.returnsErr = true
	default:
		return nil, eris.Wrapf(ErrInvalidSystem, "%s must return nothing or an error", s.name)
	}

	var params []systemParam
	s.args = make([]reflect.Value, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		in := fnType.In(i)
		if in == updateFrameType {
			s.frameArg = i
			s.args[i] = reflect.Zero(in)
			continue
		}
		if in.Kind() != reflect.Ptr || !in.Implements(paramType) {
			return nil, eris.Wrapf(ErrInvalidSystem, "%s parameter %d has unsupported type %s", s.name, i, in)
		}
		arg := reflect.New(in.Elem())
		param := arg.Interface().(systemParam)
		if err := param.initParam(cell); err != nil {
			return nil, err
		}
		params = append(params, param)
		s.args[i] = arg
	}
	return params, nil
}

type namedSystem struct {
	System
	name string
}

// Named overrides the name reported for system in stats and errors.
func Named(name string, system any) System {
	return &namedSystem{System: asSystem(system), name: name}
}

func asSystem(system any) System {
	if s, ok := system.(System); ok {
		return s
	}
	return SystemFunc(system)
}

// systemName derives a readable name from the system's type or function.
func systemName(system System) string {
	switch s := system.(type) {
	case *namedSystem:
		return s.name
	case *funcSystem:
		return s.name
	}
	systemType := reflect.TypeOf(system)
	if systemType.Kind() == reflect.Ptr {
		systemType = systemType.Elem()
	}
	return systemType.Name()
}

// initSystem initializes every input of system through cell and returns the inputs.
func initSystem(system System, cell *worldCell) ([]systemParam, error) {
	if named, ok := system.(*namedSystem); ok {
		system = named.System
	}
	if fs, ok := system.(*funcSystem); ok {
		return fs.initFunc(cell)
	}

	systemValue := reflect.ValueOf(system)
	if systemValue.Kind() == reflect.Ptr {
		systemValue = systemValue.Elem()
	}

	var params []systemParam
	if systemValue.Kind() == reflect.Struct {
		for i := 0; i < systemValue.NumField(); i++ {
			field := systemValue.Field(i)
			if !field.CanAddr() || !field.CanSet() {
				continue
			}
			param, ok := field.Addr().Interface().(systemParam)
			if !ok {
				continue
			}
			if err := param.initParam(cell); err != nil {
				return nil, err
			}
			params = append(params, param)
		}
	}

	if initializer, ok := system.(SystemInitializer); ok {
		if err := initializer.Init(cell.world); err != nil {
			return nil, eris.Wrapf(err, "init system %s", cell.system)
		}
	}
	return params, nil
}

// runSystem executes system, returning the error of fallible systems.
func runSystem(system System, frame *UpdateFrame) error {
	if named, ok := system.(*namedSystem); ok {
		system = named.System
	}
	if fs, ok := system.(FallibleSystem); ok {
		return fs.Run(frame)
	}
	system.Execute(frame)
	return nil
}
