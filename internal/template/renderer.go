package template

import (
	"context"
	"fmt"
	"strings"

	lfstarlark "github.com/leapstack-labs/leapforge/internal/starlark"
	"go.starlark.net/starlark"
)

// RenderString parses and renders input against ectx.
func RenderString(input, file string, ectx *lfstarlark.ExecutionContext) (string, error) {
	return RenderContext(context.Background(), input, file, ectx)
}

// RenderContext is RenderString with a context for adapter calls made by
// expressions.
func RenderContext(ctx context.Context, input, file string, ectx *lfstarlark.ExecutionContext) (string, error) {
	tmpl, err := ParseString(input, file)
	if err != nil {
		return "", err
	}
	return Render(ctx, tmpl, ectx)
}

// Render evaluates tmpl. Loop variables are visible to nested nodes and
// shadow globals.
func Render(ctx context.Context, tmpl *Template, ectx *lfstarlark.ExecutionContext) (string, error) {
	r := &renderer{ctx: ctx, ectx: ectx, file: tmpl.File}
	var sb strings.Builder
	if err := r.render(&sb, tmpl.Nodes, nil); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type renderer struct {
	ctx  context.Context
	ectx *lfstarlark.ExecutionContext
	file string
}

func (r *renderer) render(sb *strings.Builder, nodes []Node, locals starlark.StringDict) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case *TextNode:
			sb.WriteString(n.Text)
		case *ExprNode:
			v, err := r.eval(n.Expr, n.Pos(), locals)
			if err != nil {
				return err
			}
			if v != starlark.None {
				sb.WriteString(lfstarlark.Stringify(v))
			}
		case *ForBlock:
			if err := r.renderFor(sb, n, locals); err != nil {
				return err
			}
		case *IfBlock:
			if err := r.renderIf(sb, n, locals); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *renderer) eval(expr string, pos Position, locals starlark.StringDict) (starlark.Value, error) {
	if expr == "" {
		return starlark.None, nil
	}
	v, err := r.ectx.EvalExprWithLocals(r.ctx, expr, r.file, pos.Line, locals)
	if err != nil {
		return nil, WrapRenderError(pos, "evaluation failed", err)
	}
	return v, nil
}

func (r *renderer) renderFor(sb *strings.Builder, block *ForBlock, locals starlark.StringDict) error {
	v, err := r.eval(block.IterExpr, block.Pos(), locals)
	if err != nil {
		return err
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return NewRenderErrorf(block.Pos(), "cannot iterate over %s", v.Type())
	}

	names := strings.Split(block.VarName, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}

	iter := iterable.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		scope := make(starlark.StringDict, len(locals)+len(names))
		for k, v := range locals {
			scope[k] = v
		}
		if err := bind(scope, names, item); err != nil {
			return NewRenderError(block.Pos(), err.Error())
		}
		if err := r.render(sb, block.Body, scope); err != nil {
			return err
		}
	}
	return nil
}

// bind assigns item to the loop variables, unpacking when there are
// several.
func bind(scope starlark.StringDict, names []string, item starlark.Value) error {
	if len(names) == 1 {
		scope[names[0]] = item
		return nil
	}
	seq, ok := item.(starlark.Indexable)
	if !ok {
		return fmt.Errorf("cannot unpack %s into %d variables", item.Type(), len(names))
	}
	if seq.Len() != len(names) {
		return fmt.Errorf("cannot unpack %d values into %d variables", seq.Len(), len(names))
	}
	for i, name := range names {
		scope[name] = seq.Index(i)
	}
	return nil
}

func (r *renderer) renderIf(sb *strings.Builder, block *IfBlock, locals starlark.StringDict) error {
	ok, err := r.truth(block.Condition, block.Pos(), locals)
	if err != nil {
		return err
	}
	if ok {
		return r.render(sb, block.Body, locals)
	}
	for _, branch := range block.ElseIfs {
		ok, err := r.truth(branch.Condition, branch.pos, locals)
		if err != nil {
			return err
		}
		if ok {
			return r.render(sb, branch.Body, locals)
		}
	}
	return r.render(sb, block.Else, locals)
}

func (r *renderer) truth(expr string, pos Position, locals starlark.StringDict) (bool, error) {
	v, err := r.eval(expr, pos, locals)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}
