package translate

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// Built-in include modules. They are always registered, in this order.
const (
	ModuleIO        = "dawnlang.io"
	ModuleDataTypes = "dawnlang.data.types"
)

// Module maps a DawnLang include name to a C header.
type Module struct {
	Name    string
	Header  string
	BuiltIn bool
}

// Registry is the ordered table consulted by the #include rule.
type Registry struct {
	modules *orderedmap.OrderedMap[string, Module]
}

// NewRegistry returns a registry holding the built-in modules.
func NewRegistry() *Registry {
	r := &Registry{modules: orderedmap.NewOrderedMap[string, Module]()}
	r.modules.Set(ModuleIO, Module{Name: ModuleIO, Header: "<stdio.h>", BuiltIn: true})
	r.modules.Set(ModuleDataTypes, Module{Name: ModuleDataTypes, Header: "<string.h>", BuiltIn: true})
	return r
}

// Register adds a module after the existing ones. Headers without <> or ""
// are wrapped in <>.
func (r *Registry) Register(name, header string) error {
	name = strings.TrimSpace(name)
	header = strings.TrimSpace(header)
	if name == "" || header == "" {
		return fmt.Errorf("module name and header must not be empty")
	}
	if existing, ok := r.modules.Get(name); ok {
		if existing.BuiltIn {
			return fmt.Errorf("module %s is built in and cannot be redefined", name)
		}
		return fmt.Errorf("module %s is already registered as %s", name, existing.Header)
	}
	if !(strings.HasPrefix(header, "<") && strings.HasSuffix(header, ">")) &&
		!(strings.HasPrefix(header, `"`) && strings.HasSuffix(header, `"`) && len(header) > 1) {
		header = "<" + header + ">"
	}
	r.modules.Set(name, Module{Name: name, Header: header})
	return nil
}

// Lookup returns the header for a module name.
func (r *Registry) Lookup(name string) (string, bool) {
	m, ok := r.modules.Get(name)
	if !ok {
		return "", false
	}
	return m.Header, true
}

// Modules returns all modules in registration order.
func (r *Registry) Modules() []Module {
	out := make([]Module, 0, r.modules.Len())
	for el := r.modules.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// Names returns the module names in registration order.
func (r *Registry) Names() []string {
	return r.modules.Keys()
}
