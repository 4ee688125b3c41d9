package starlark

import (
	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/starlark"
)

// DocBlock is a named documentation block of a package.
type DocBlock struct {
	Package  string
	Name     string
	Contents string
}

// DocMacro implements doc(name) and doc(package, name) over the
// documentation blocks of a project and its dependencies.
type DocMacro struct {
	pkg  string
	docs []DocBlock
}

var _ starlark.Callable = (*DocMacro)(nil)

// NewDocMacro creates the doc function for code of the package currentPkg.
// The order of docs decides which package wins a one-argument lookup when
// the current package has no block of that name.
func NewDocMacro(currentPkg string, docs []DocBlock) *DocMacro {
	return &DocMacro{pkg: currentPkg, docs: docs}
}

// Lookup resolves a doc block. An empty pkg searches the current package
// first and then every other package in order.
func (d *DocMacro) Lookup(pkg, name string) (string, error) {
	if pkg != "" {
		for _, b := range d.docs {
			if b.Package == pkg && b.Name == name {
				return b.Contents, nil
			}
		}
		return "", core.InvalidOperationError("doc: doc '%s' not found for package '%s'", name, pkg)
	}
	for _, b := range d.docs {
		if b.Package == d.pkg && b.Name == name {
			return b.Contents, nil
		}
	}
	for _, b := range d.docs {
		if b.Package != d.pkg && b.Name == name {
			return b.Contents, nil
		}
	}
	return "", core.InvalidOperationError("doc: doc '%s' not found for package '%s'", name, d.pkg)
}

func (d *DocMacro) Name() string          { return "doc" }
func (d *DocMacro) String() string        { return "<built-in function doc>" }
func (d *DocMacro) Type() string          { return "builtin_function_or_method" }
func (d *DocMacro) Freeze()               {}
func (d *DocMacro) Truth() starlark.Bool  { return starlark.True }
func (d *DocMacro) Hash() (uint32, error) { return 0, core.InvalidOperationError("unhashable: doc") }

// CallInternal implements starlark.Callable.
func (d *DocMacro) CallInternal(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pkg, name string
	switch {
	case len(kwargs) > 0:
		return nil, core.InvalidOperationError("doc: unexpected keyword arguments")
	case len(args) == 1:
		name = Stringify(args[0])
	case len(args) == 2:
		pkg, name = Stringify(args[0]), Stringify(args[1])
	default:
		return nil, core.InvalidOperationError("doc: expected 1 or 2 arguments, got %d", len(args))
	}
	contents, err := d.Lookup(pkg, name)
	if err != nil {
		return nil, err
	}
	return starlark.String(contents), nil
}
