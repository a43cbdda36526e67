package kunruntime

import (
	"fmt"
	"os"
	"runtime"
	"sync"
)

// Library owns a loaded factor library (a shared object produced by the
// KunQuant compiler). Modules obtained from it are views that stay usable
// only while the library is open.
type Library struct {
	*libraryState
}

// libraryState is what Modules point back to. The finalizer sits on the
// outer Library, so the module cache does not keep it reachable.
type libraryState struct {
	api    Engine
	handle LibraryHandle
	path   string
	life   *lifetime

	mu      sync.Mutex
	modules map[string]*Module
}

// Module is a named computation graph inside a Library.
// It owns nothing: the Library it came from must stay open while it is used.
// Calls through a Module whose Library was closed fail with ErrLibraryClosed.
type Module struct {
	handle ModuleHandle
	name   string
	lib    *libraryState
}

// LoadLibrary loads the factor library at path.
//
// The path is checked on the local filesystem first. A missing file and a
// file the engine refuses to load (wrong architecture, corrupt, missing
// dependency) both return an error wrapping ErrLibraryLoadFailed.
func LoadLibrary(path string) (*Library, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &KunError{
			Op:      "LoadLibrary",
			Path:    path,
			Message: fmt.Sprintf("cannot access library file: %v", err),
			Err:     ErrLibraryLoadFailed,
		}
	}
	if err := validateName("LoadLibrary", path); err != nil {
		return nil, err
	}

	api := currentEngine()

	var h LibraryHandle
	withName(api, path, func(n NameHandle) {
		h = api.LoadLibrary(n)
	})
	if h == nil {
		return nil, &KunError{
			Op:      "LoadLibrary",
			Path:    path,
			Message: "engine rejected the library",
			Err:     ErrLibraryLoadFailed,
		}
	}

	lib := &Library{&libraryState{
		api:     api,
		handle:  h,
		path:    path,
		modules: make(map[string]*Module),
		life:    newLifetime(func() { api.UnloadLibrary(h) }),
	}}

	runtime.SetFinalizer(lib, func(l *Library) {
		l.Close()
	})

	return lib, nil
}

// Path returns the path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Module looks up a computation graph by name.
// A missing name returns an error wrapping ErrModuleNotFound; the library
// remains usable for other lookups.
func (l *Library) Module(name string) (*Module, error) {
	if l == nil {
		return nil, &KunError{Op: "Module", Name: name, Message: "library is nil", Err: ErrNullPointer}
	}
	if err := validateName("Module", name); err != nil {
		return nil, err
	}
	if err := l.borrow("Module"); err != nil {
		return nil, err
	}
	defer l.unborrow()

	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.modules[name]; ok {
		return m, nil
	}

	var h ModuleHandle
	withName(l.api, name, func(n NameHandle) {
		h = l.api.GetModule(l.handle, n)
	})
	if h == nil {
		return nil, &KunError{
			Op:      "Module",
			Name:    name,
			Message: fmt.Sprintf("no module in %s", l.path),
			Err:     ErrModuleNotFound,
		}
	}

	m := &Module{handle: h, name: name, lib: l.libraryState}
	l.modules[name] = m
	return m, nil
}

// IsClosed reports whether Close has been called.
func (l *Library) IsClosed() bool {
	return l.life.isClosed()
}

// Close unloads the library. Streams created from its modules keep the
// native library loaded until they are closed. Safe to call more than once.
func (l *Library) Close() error {
	if l == nil || l.libraryState == nil {
		return nil
	}
	if l.life.close() {
		runtime.SetFinalizer(l, nil)
	}
	return nil
}

func (l *libraryState) borrow(op string) error {
	if l == nil {
		return &KunError{Op: op, Message: "library is nil", Err: ErrNullPointer}
	}
	if !l.life.acquire() {
		return &KunError{Op: op, Path: l.path, Err: ErrLibraryClosed}
	}
	return nil
}

func (l *libraryState) unborrow() {
	l.life.drop()
}

// Name returns the module's name within its library.
func (m *Module) Name() string {
	return m.name
}

// LibraryPath returns the path of the library the module belongs to.
func (m *Module) LibraryPath() string {
	return m.lib.path
}

// borrow pins the owning library for the duration of a native call.
func (m *Module) borrow(op string) error {
	if m == nil {
		return &KunError{Op: op, Message: "module is nil", Err: ErrNullPointer}
	}
	if err := m.lib.borrow(op); err != nil {
		if ke, ok := err.(*KunError); ok {
			ke.Name = m.name
		}
		return err
	}
	return nil
}

func (m *Module) unborrow() {
	m.lib.unborrow()
}
