package rtabi

// Runtime function names (must match the runtime's exported symbols)
const (
	// Memory allocation
	FnAlloc = "rt_alloc"
	FnFree  = "rt_free"

	// Error handling
	FnPanicString = "rt_panic_string"

	// Weak liveness table
	FnWeakNew       = "rt_weak_new"
	FnWeakAcquire   = "rt_weak_acquire"
	FnWeakRelease   = "rt_weak_release"
	FnWeakIsAlive   = "rt_weak_is_alive"
	FnWeakMarkDead  = "rt_weak_mark_dead"
	FnWeakTryRetain = "rt_weak_try_retain"
)

// FuncSignature describes a runtime function's signature for code generation.
type FuncSignature struct {
	Name       string   // Function name
	ReturnType string   // LLVM return type ("void", "ptr", etc.)
	ParamTypes []string // LLVM parameter types
	NoReturn   bool     // Whether function has noreturn attribute
}

// RuntimeFunctions returns the signatures of all runtime functions.
func RuntimeFunctions() []FuncSignature {
	return []FuncSignature{
		// Memory allocation
		{Name: FnAlloc, ReturnType: "ptr", ParamTypes: []string{"i64"}},
		{Name: FnFree, ReturnType: "void", ParamTypes: []string{"ptr"}},

		// Error handling
		{Name: FnPanicString, ReturnType: "void", ParamTypes: []string{"ptr", "i64"}, NoReturn: true},

		// Weak liveness table
		{Name: FnWeakNew, ReturnType: "i64", ParamTypes: nil},
		{Name: FnWeakAcquire, ReturnType: "void", ParamTypes: []string{"i64"}},
		{Name: FnWeakRelease, ReturnType: "void", ParamTypes: []string{"i64"}},
		{Name: FnWeakIsAlive, ReturnType: "i1", ParamTypes: []string{"i64"}},
		{Name: FnWeakMarkDead, ReturnType: "void", ParamTypes: []string{"i64"}},
		// rt_weak_try_retain(handle, obj) increments the strong count in
		// obj's control block only if the record is alive and the count is
		// nonzero. obj is not touched when the record is dead.
		{Name: FnWeakTryRetain, ReturnType: "i1", ParamTypes: []string{"i64", "ptr"}},
	}
}

// Lookup returns the signature of the named runtime function.
func Lookup(name string) (FuncSignature, bool) {
	for _, sig := range RuntimeFunctions() {
		if sig.Name == name {
			return sig, true
		}
	}
	return FuncSignature{}, false
}
