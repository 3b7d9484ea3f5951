package region

// phase is the declare/define progress of one kind or edge.
type phase uint8

const (
	undeclared phase = iota
	declared
	defined
)

func (p phase) String() string {
	switch p {
	case declared:
		return "declared"
	case defined:
		return "defined"
	}
	return "undeclared"
}

// lifecycle tracks the phases of everything one backend declares. A kind
// and its extra functions move through the phases independently.
// Transitions are one-way: declaring twice, defining before declaring and
// defining twice are internal errors.
type lifecycle struct {
	kinds  map[interface{}]phase
	extras map[interface{}]phase
}

func newLifecycle() lifecycle {
	return lifecycle{
		kinds:  make(map[interface{}]phase),
		extras: make(map[interface{}]phase),
	}
}

func (l *lifecycle) table(extra bool) map[interface{}]phase {
	if extra {
		return l.extras
	}
	return l.kinds
}

// phase returns the current phase of key.
func (l *lifecycle) phase(key interface{}, extra bool) phase {
	return l.table(extra)[key]
}

// declare moves key from undeclared to declared.
func (l *lifecycle) declare(op string, key interface{}, extra bool) {
	t := l.table(extra)
	if p := t[key]; p != undeclared {
		internalf(op, "%v is already %s", key, p)
	}
	t[key] = declared
}

// define moves key from declared to defined.
func (l *lifecycle) define(op string, key interface{}, extra bool) {
	t := l.table(extra)
	switch p := t[key]; p {
	case undeclared:
		internalf(op, "%v defined before it was declared", key)
	case defined:
		internalf(op, "%v is already defined", key)
	}
	t[key] = defined
}

// requireDeclared panics unless key's kind itself has been declared.
func (l *lifecycle) requireDeclared(op string, key interface{}) {
	if l.kinds[key] == undeclared {
		internalf(op, "%v has not been declared", key)
	}
}
