package formula

import (
	"math"
	"strconv"
)

const (
	piValue = math.Pi
	eValue  = math.E
)

type fn func(args []float64) (float64, error)

// safeFunctions is the closed function table §4.3 mandates: it IS the
// sandbox, not an afterthought filter on top of a general-purpose runtime.
// A call to anything not in this map fails at parse time, before any
// evaluation is attempted.
var safeFunctions = map[string]fn{
	"abs":     unary(math.Abs),
	"fabs":    unary(math.Abs),
	"round":   roundFn,
	"floor":   unary(math.Floor),
	"ceil":    unary(math.Ceil),
	"sqrt":    checkedUnary(math.Sqrt, func(x float64) bool { return x < 0 }, "sqrt of negative number"),
	"log":     checkedUnary(math.Log, func(x float64) bool { return x <= 0 }, "log of non-positive number"),
	"log10":   checkedUnary(math.Log10, func(x float64) bool { return x <= 0 }, "log10 of non-positive number"),
	"log2":    checkedUnary(math.Log2, func(x float64) bool { return x <= 0 }, "log2 of non-positive number"),
	"exp":     unary(math.Exp),
	"sin":     unary(math.Sin),
	"cos":     unary(math.Cos),
	"tan":     unary(math.Tan),
	"asin":    unary(math.Asin),
	"acos":    unary(math.Acos),
	"atan":    unary(math.Atan),
	"atan2":   binaryFn(math.Atan2),
	"degrees": unary(func(x float64) float64 { return x * 180 / math.Pi }),
	"radians": unary(func(x float64) float64 { return x * math.Pi / 180 }),
	"pow":     binaryFn(powFloat),
	"min":     variadic(func(a, b float64) float64 { return math.Min(a, b) }),
	"max":     variadic(func(a, b float64) float64 { return math.Max(a, b) }),
	"sum":     sumFn,
	"len":     lenFn,
	"int":     unary(math.Trunc),
	"float":   unary(func(x float64) float64 { return x }),
	"bool":    unary(func(x float64) float64 { return boolFloat(x != 0) }),
}

func unary(f func(float64) float64) fn {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, wrap(ErrTypeError, "expects exactly 1 argument")
		}
		return f(args[0]), nil
	}
}

func checkedUnary(f func(float64) float64, invalid func(float64) bool, msg string) fn {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, wrap(ErrTypeError, "expects exactly 1 argument")
		}
		if invalid(args[0]) {
			return 0, wrap(ErrRuntimeError, msg)
		}
		return f(args[0]), nil
	}
}

func binaryFn(f func(a, b float64) float64) fn {
	return func(args []float64) (float64, error) {
		if len(args) != 2 {
			return 0, wrap(ErrTypeError, "expects exactly 2 arguments")
		}
		return f(args[0], args[1]), nil
	}
}

func variadic(reduce func(a, b float64) float64) fn {
	return func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, wrap(ErrTypeError, "expects at least 1 argument")
		}
		acc := args[0]
		for _, a := range args[1:] {
			acc = reduce(acc, a)
		}
		return acc, nil
	}
}

func sumFn(args []float64) (float64, error) {
	var total float64
	for _, a := range args {
		total += a
	}
	return total, nil
}

func lenFn(args []float64) (float64, error) {
	return float64(len(args)), nil
}

func roundFn(args []float64) (float64, error) {
	switch len(args) {
	case 1:
		return math.Round(args[0]), nil
	case 2:
		mult := math.Pow(10, args[1])
		return math.Round(args[0]*mult) / mult, nil
	default:
		return 0, wrap(ErrTypeError, "round expects 1 or 2 arguments")
	}
}

func powFloat(a, b float64) float64 { return math.Pow(a, b) }

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
