// SPDX-License-Identifier: MPL-2.0

package fedfile

import (
	"errors"
	"testing"
)

func TestAppNameIsValid(t *testing.T) {
	t.Parallel()

	valid := []AppName{"catalog", "my-app", "shell_2", "a"}
	for _, n := range valid {
		if ok, errs := n.IsValid(); !ok {
			t.Errorf("%q should be valid: %v", n, errs)
		}
	}

	invalid := []AppName{"", "  ", "Catalog", "2fast", "-dash", "has space", "dot.name"}
	for _, n := range invalid {
		ok, errs := n.IsValid()
		if ok {
			t.Errorf("%q should be invalid", n)
			continue
		}
		if !errors.Is(errs[0], ErrInvalidAppName) {
			t.Errorf("%q: error should unwrap to ErrInvalidAppName", n)
		}
	}
}

func TestModuleNameIsValid(t *testing.T) {
	t.Parallel()

	valid := []ModuleName{"Button", "product-list", "widgets/Cart", "a/b/c", "X_1"}
	for _, n := range valid {
		if ok, errs := n.IsValid(); !ok {
			t.Errorf("%q should be valid: %v", n, errs)
		}
	}

	invalid := []ModuleName{"", "/lead", "trail/", "a//b", "1st", "a b", "../x"}
	for _, n := range invalid {
		ok, errs := n.IsValid()
		if ok {
			t.Errorf("%q should be invalid", n)
			continue
		}
		if !errors.Is(errs[0], ErrInvalidModuleName) {
			t.Errorf("%q: error should unwrap to ErrInvalidModuleName", n)
		}
	}
}
