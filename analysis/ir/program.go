// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/awslabs/cryptoslice/internal/funcutil"
)

// Provider gives access to the decoded application: its classes, and the method bodies.
type Provider interface {
	// Units returns the ordered units of the method, or nil if the method has no retrievable body
	Units(method string) []*Unit
	// Method returns the method with that signature, or nil
	Method(signature string) *Method
	// Class returns the class with that name, or nil for phantom classes
	Class(name string) *Class
	// DeclaredClasses returns the names of all the classes with a definition, sorted
	DeclaredClasses() []string
	// IsBuiltinClass returns true for platform and runtime classes
	IsBuiltinClass(name string) bool
	// IsDevClass returns true for classes written by the application developer
	IsDevClass(name string) bool
	// IsAppComponent returns true for declared application components (activities, services, receivers,
	// providers) and the application class
	IsAppComponent(name string) bool
	// Implements returns true if class is iface, or extends or implements it, transitively
	Implements(class string, iface string) bool
	// StaticConstantFields returns the static final fields of the class that have a compile-time constant value
	StaticConstantFields(class string) map[string]Value
	// Field returns the declaration of a field, or nil if the field is not declared by a program class
	Field(signature string) *Field
}

// A Field is a field declaration
type Field struct {
	Signature string `yaml:"sig" msgpack:"sig"`
	Static    bool   `yaml:"static,omitempty" msgpack:"static,omitempty"`
	Final     bool   `yaml:"final,omitempty" msgpack:"final,omitempty"`
	// Constant is the compile-time constant value recorded for the field, if any
	Constant *Value `yaml:"constant,omitempty" msgpack:"constant,omitempty"`
}

// A Method is a method declaration, with its body if it is concrete
type Method struct {
	Signature string  `yaml:"sig" msgpack:"sig"`
	Static    bool    `yaml:"static,omitempty" msgpack:"static,omitempty"`
	Abstract  bool    `yaml:"abstract,omitempty" msgpack:"abstract,omitempty"`
	Units     []*Unit `yaml:"units,omitempty" msgpack:"units,omitempty"`
}

// Concrete returns true if the method has a body
func (m *Method) Concrete() bool {
	return !m.Abstract && len(m.Units) > 0
}

// Class returns the declaring class of the method
func (m *Method) Class() string {
	return ClassName(m.Signature)
}

// Name returns the name of the method
func (m *Method) Name() string {
	return MethodName(m.Signature)
}

// A Class is a class or interface declaration
type Class struct {
	Name       string    `yaml:"name" msgpack:"name"`
	Super      string    `yaml:"super,omitempty" msgpack:"super,omitempty"`
	Interfaces []string  `yaml:"interfaces,omitempty" msgpack:"interfaces,omitempty"`
	Interface  bool      `yaml:"interface,omitempty" msgpack:"interface,omitempty"`
	Enum       bool      `yaml:"enum,omitempty" msgpack:"enum,omitempty"`
	Fields     []Field   `yaml:"fields,omitempty" msgpack:"fields,omitempty"`
	Methods    []*Method `yaml:"methods,omitempty" msgpack:"methods,omitempty"`
}

// Program is a decoded application. It implements Provider.
type Program struct {
	// Package is the application package name
	Package string `yaml:"package" msgpack:"package"`
	// Application is the name of the application class, if declared
	Application string `yaml:"application,omitempty" msgpack:"application,omitempty"`
	// Components are the declared activities, services, receivers and providers
	Components []string `yaml:"components,omitempty" msgpack:"components,omitempty"`
	// DevPrefixes are additional class name prefixes of developer code, besides the package
	DevPrefixes []string `yaml:"dev-prefixes,omitempty" msgpack:"dev-prefixes,omitempty"`
	Classes     []*Class `yaml:"classes" msgpack:"classes"`

	classes         map[string]*Class
	methods         map[string]*Method
	components      map[string]bool
	builtinPrefixes []string
}

// NewProgram returns an empty program for the application package
func NewProgram(pkg string) *Program {
	return &Program{Package: pkg}
}

// AddClass adds a class to the program. Finalize must be called after all classes have been added.
func (p *Program) AddClass(c *Class) *Program {
	p.Classes = append(p.Classes, c)
	return p
}

// SetBuiltinPrefixes sets the class name prefixes of builtin classes
func (p *Program) SetBuiltinPrefixes(prefixes []string) {
	p.builtinPrefixes = append([]string{}, prefixes...)
}

// Finalize indexes the program and normalizes the method bodies: unit positions are set, and the body of a method
// with an invalid unit is dropped (the method becomes phantom). The problems found are returned, one per method; they
// are not fatal.
func (p *Program) Finalize() []error {
	var problems []error
	p.classes = make(map[string]*Class, len(p.Classes))
	p.methods = map[string]*Method{}
	p.components = map[string]bool{}
	if p.builtinPrefixes == nil {
		p.builtinPrefixes = config.DefaultBuiltinPrefixes
	}
	for _, c := range p.Components {
		p.components[c] = true
	}
	if p.Application != "" {
		p.components[p.Application] = true
	}
	for _, c := range p.Classes {
		if c == nil || c.Name == "" {
			problems = append(problems, fmt.Errorf("class without a name"))
			continue
		}
		p.classes[c.Name] = c
		for _, m := range c.Methods {
			if m == nil || !IsMethodSignature(m.Signature) {
				problems = append(problems, fmt.Errorf("class %s: method with invalid signature", c.Name))
				continue
			}
			p.methods[m.Signature] = m
			for i, u := range m.Units {
				if u == nil {
					m.Units[i] = NewNop(i)
				}
				m.Units[i].Pos = i
			}
			for _, u := range m.Units {
				if err := u.Validate(len(m.Units)); err != nil {
					problems = append(problems, fmt.Errorf("method %s: %w", m.Signature, err))
					m.Units = nil
					break
				}
			}
		}
	}
	return problems
}

// Units returns the units of the method
func (p *Program) Units(method string) []*Unit {
	if m := p.methods[method]; m != nil {
		return m.Units
	}
	return nil
}

// Method returns the method with that signature
func (p *Program) Method(signature string) *Method {
	return p.methods[signature]
}

// Class returns the class with that name
func (p *Program) Class(name string) *Class {
	return p.classes[name]
}

// DeclaredClasses returns the names of the classes of the program
func (p *Program) DeclaredClasses() []string {
	names := make([]string, 0, len(p.classes))
	for name := range p.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Methods returns all the methods of the program, sorted by signature
func (p *Program) Methods() []*Method {
	res := make([]*Method, 0, len(p.methods))
	for _, m := range p.methods {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Signature < res[j].Signature })
	return res
}

// IsBuiltinClass returns true if the name starts with a builtin prefix
func (p *Program) IsBuiltinClass(name string) bool {
	return funcutil.Exists(p.builtinPrefixes, func(prefix string) bool { return strings.HasPrefix(name, prefix) })
}

// IsDevClass returns true if the class belongs to the application package or one of the developer prefixes, and is
// not builtin
func (p *Program) IsDevClass(name string) bool {
	if name == "" || p.IsBuiltinClass(name) {
		return false
	}
	if p.Package != "" && strings.HasPrefix(name, p.Package) {
		return true
	}
	return funcutil.Exists(p.DevPrefixes, func(prefix string) bool { return strings.HasPrefix(name, prefix) })
}

// IsAppComponent returns true for declared components and the application class
func (p *Program) IsAppComponent(name string) bool {
	return p.components[name]
}

// Implements returns true if class is iface or a subtype of it
func (p *Program) Implements(class string, iface string) bool {
	visited := map[string]bool{}
	var visit func(string) bool
	visit = func(name string) bool {
		if name == iface {
			return true
		}
		if name == "" || visited[name] {
			return false
		}
		visited[name] = true
		c := p.classes[name]
		if c == nil {
			return false
		}
		if visit(c.Super) {
			return true
		}
		return funcutil.Exists(c.Interfaces, visit)
	}
	return visit(class)
}

// StaticConstantFields returns the fields of the class that are static, final, and have a constant value
func (p *Program) StaticConstantFields(class string) map[string]Value {
	res := map[string]Value{}
	c := p.classes[class]
	if c == nil {
		return res
	}
	for _, f := range c.Fields {
		if f.Static && f.Final && f.Constant != nil {
			res[f.Signature] = *f.Constant
		}
	}
	return res
}

// Field returns the declaration of the field with that signature, or nil
func (p *Program) Field(signature string) *Field {
	c := p.classes[ClassName(signature)]
	if c == nil {
		return nil
	}
	for i := range c.Fields {
		if c.Fields[i].Signature == signature {
			return &c.Fields[i]
		}
	}
	return nil
}
