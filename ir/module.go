package ir

import (
	"sync"

	"esocc/report"
)

// SymbolKind distinguishes code symbols from data symbols.
type SymbolKind int

// Enumeration of symbol kinds.
const (
	SymFunc SymbolKind = iota
	SymData
)

// Symbol is an entry in a module's global symbol table.
type Symbol struct {
	Name    string
	Kind    SymbolKind
	Linkage Linkage
}

// Module is a compilation unit: functions and global data plus the global
// symbol table.  The table is written only during lowering; Freeze makes it
// read-only so that functions can be processed concurrently afterwards.
type Module struct {
	Name    string
	Funcs   []*Func
	Globals []*Global

	symbols map[string]*Symbol
	order   []string

	m      sync.RWMutex
	frozen bool
}

// NewModule creates a new empty module.
func NewModule(name string) *Module {
	return &Module{Name: name, symbols: make(map[string]*Symbol)}
}

// Declare adds or refines a symbol.  Redeclaring a symbol may only upgrade an
// imported declaration to a definition; the kind must match.
func (m *Module) Declare(name string, kind SymbolKind, linkage Linkage) (*Symbol, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.frozen {
		return nil, report.ICE("lower", "", "symbol `%s` declared after the symbol table was frozen", name)
	}

	if sym, ok := m.symbols[name]; ok {
		if sym.Kind != kind {
			return nil, report.ICE("lower", "", "symbol `%s` redeclared with a different kind", name)
		}

		if sym.Linkage == LinkImported {
			sym.Linkage = linkage
		}

		return sym, nil
	}

	sym := &Symbol{Name: name, Kind: kind, Linkage: linkage}
	m.symbols[name] = sym
	m.order = append(m.order, name)
	return sym, nil
}

// Freeze makes the symbol table read-only.
func (m *Module) Freeze() {
	m.m.Lock()
	m.frozen = true
	m.m.Unlock()
}

// Frozen returns whether the symbol table is read-only.
func (m *Module) Frozen() bool {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.frozen
}

// Lookup looks up a symbol by name.
func (m *Module) Lookup(name string) (*Symbol, bool) {
	m.m.RLock()
	defer m.m.RUnlock()

	sym, ok := m.symbols[name]
	return sym, ok
}

// Symbols returns the symbols in declaration order.
func (m *Module) Symbols() []*Symbol {
	m.m.RLock()
	defer m.m.RUnlock()

	syms := make([]*Symbol, len(m.order))
	for i, name := range m.order {
		syms[i] = m.symbols[name]
	}

	return syms
}

// Func returns the function with the given name or nil.
func (m *Module) Func(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// Global returns the global with the given name or nil.
func (m *Module) Global(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}

	return nil
}
