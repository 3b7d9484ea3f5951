package rtabi

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the runtime ABI version the generated code is written against.
// Bump the minor version for additive runtime functions and the major
// version for any control-block or fat-reference layout change.
const Version = "1.2.0"

// RuntimeConstraint is the range of runtime versions that can link with
// code produced by this compiler.
const RuntimeConstraint = "^1.2.0"

// CheckRuntimeVersion reports whether a runtime advertising version v can
// host generated code. An empty v is accepted and means "the bundled runtime".
func CheckRuntimeVersion(v string) error {
	if v == "" {
		return nil
	}
	rv, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("rtabi: invalid runtime version %q: %w", v, err)
	}
	c, err := semver.NewConstraint(RuntimeConstraint)
	if err != nil {
		return fmt.Errorf("rtabi: invalid constraint %q: %w", RuntimeConstraint, err)
	}
	if ok, reasons := c.Validate(rv); !ok {
		return fmt.Errorf("rtabi: runtime %s does not satisfy %s: %v", rv, RuntimeConstraint, reasons)
	}
	return nil
}
