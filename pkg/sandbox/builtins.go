// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"math"
	"math/big"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// maxPowExponent keeps pow from allocating unbounded integers.
const maxPowExponent = 4096

// predeclared extends the Starlark universe (abs, all, any, bool, chr, dict,
// enumerate, float, int, len, list, max, min, ord, range, reversed, set,
// sorted, str, tuple, zip, ...) with the remaining pure helpers programs
// expect. Nothing here touches the host.
func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"bin":    starlark.NewBuiltin("bin", builtinBin),
		"filter": starlark.NewBuiltin("filter", builtinFilter),
		"map":    starlark.NewBuiltin("map", builtinMap),
		"pow":    starlark.NewBuiltin("pow", builtinPow),
		"round":  starlark.NewBuiltin("round", builtinRound),
		"sum":    starlark.NewBuiltin("sum", builtinSum),
	}
}

func builtinBin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	n := x.BigInt()
	if n.Sign() < 0 {
		return starlark.String("-0b" + new(big.Int).Neg(n).Text(2)), nil
	}
	return starlark.String("0b" + n.Text(2)), nil
}

func builtinMap(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		fn       starlark.Callable
		iterable starlark.Iterable
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &fn, &iterable); err != nil {
		return nil, err
	}
	var out []starlark.Value
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		v, err := starlark.Call(thread, fn, starlark.Tuple{x}, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return starlark.NewList(out), nil
}

func builtinFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		fn       starlark.Value
		iterable starlark.Iterable
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &fn, &iterable); err != nil {
		return nil, err
	}
	callable, _ := fn.(starlark.Callable)
	if fn != starlark.None && callable == nil {
		return nil, fmt.Errorf("%s: got %s, want callable or None", b.Name(), fn.Type())
	}
	var out []starlark.Value
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		keep := x
		if callable != nil {
			v, err := starlark.Call(thread, callable, starlark.Tuple{x}, nil)
			if err != nil {
				return nil, err
			}
			keep = v
		}
		if keep.Truth() {
			out = append(out, x)
		}
	}
	return starlark.NewList(out), nil
}

func builtinPow(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var base, exp starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &base, &exp); err != nil {
		return nil, err
	}
	bi, baseIsInt := base.(starlark.Int)
	ei, expIsInt := exp.(starlark.Int)
	if baseIsInt && expIsInt && ei.Sign() >= 0 {
		e := ei.BigInt()
		if !e.IsInt64() || e.Int64() > maxPowExponent {
			return nil, fmt.Errorf("%s: exponent too large", b.Name())
		}
		return starlark.MakeBigInt(new(big.Int).Exp(bi.BigInt(), e, nil)), nil
	}
	bf, ok := starlark.AsFloat(base)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want number", b.Name(), base.Type())
	}
	ef, ok := starlark.AsFloat(exp)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want number", b.Name(), exp.Type())
	}
	return starlark.Float(math.Pow(bf, ef)), nil
}

func builtinRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		x       starlark.Value
		ndigits starlark.Value = starlark.None
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x, &ndigits); err != nil {
		return nil, err
	}
	if i, ok := x.(starlark.Int); ok && ndigits == starlark.None {
		return i, nil
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want number", b.Name(), x.Type())
	}
	if ndigits == starlark.None {
		r := math.RoundToEven(f)
		if math.IsInf(r, 0) || math.IsNaN(r) {
			return nil, fmt.Errorf("%s: cannot convert %v to int", b.Name(), f)
		}
		return starlark.NumberToInt(starlark.Float(r))
	}
	n, err := starlark.AsInt32(ndigits)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	scale := math.Pow(10, float64(n))
	return starlark.Float(math.RoundToEven(f*scale) / scale), nil
}

func builtinSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		iterable starlark.Iterable
		start    starlark.Value = starlark.MakeInt(0)
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &iterable, &start); err != nil {
		return nil, err
	}
	acc := start
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		v, err := starlark.Binary(syntax.PLUS, acc, x)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", b.Name(), err)
		}
		acc = v
	}
	return acc, nil
}
