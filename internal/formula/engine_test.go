package formula

import (
	"errors"
	"math"
	"testing"
)

func TestValidateAcceptsArithmetic(t *testing.T) {
	e := NewEngine()
	if err := e.Validate("val*2+1"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestValidateRejectsSandboxEscape(t *testing.T) {
	e := NewEngine()
	cases := []string{
		`__import__('os').system('ls')`,
		`val.__class__`,
		`val[0]`,
		`os.system("ls")`,
		`open("/etc/passwd")`,
	}
	for _, expr := range cases {
		if err := e.Validate(expr); err == nil {
			t.Errorf("expected rejection for %q", expr)
		} else if !errors.Is(err, ErrInvalidFormula) {
			t.Errorf("expected ErrInvalidFormula for %q, got %v", expr, err)
		}
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	e := NewEngine()
	_, err := e.Evaluate("val/0", 5)
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestValidateOkImpliesNoInvalidFormulaOnEvaluate(t *testing.T) {
	e := NewEngine()
	exprs := []string{"val/0", "val*2", "sqrt(val)", "log(val)"}
	for _, expr := range exprs {
		if err := e.Validate(expr); err != nil {
			t.Fatalf("%q should validate, got %v", expr, err)
		}
		_, err := e.Evaluate(expr, -5)
		if err != nil && errors.Is(err, ErrInvalidFormula) {
			t.Errorf("%q: validated ok but evaluate failed with ErrInvalidFormula: %v", expr, err)
		}
	}
}

func TestHotSwapFormula(t *testing.T) {
	e := NewEngine()
	v, err := e.Evaluate("val", 100)
	if err != nil || v != 100 {
		t.Fatalf("expected 100, got %v err=%v", v, err)
	}
	v, err = e.Evaluate("val/10", 100)
	if err != nil || v != 10 {
		t.Fatalf("expected 10, got %v err=%v", v, err)
	}
}

func TestMultiVariableMode(t *testing.T) {
	e := NewEngine()
	env := map[string]struct{}{"temp1": {}, "stat_temp1_mean_1h": {}}
	if err := e.ValidateWithEnv("temp1 > 50", env); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	ok, err := e.EvaluateBool("temp1 > 50", map[string]float64{"temp1": 60})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v err=%v", ok, err)
	}
	ok, err = e.EvaluateBool("temp1 > 50 && stat_temp1_mean_1h < 40", map[string]float64{"temp1": 60, "stat_temp1_mean_1h": 10})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v err=%v", ok, err)
	}
}

func TestValidateWithEnvRejectsUnknownIdentifier(t *testing.T) {
	e := NewEngine()
	env := map[string]struct{}{"temp1": {}}
	if err := e.ValidateWithEnv("temp2 > 50", env); err == nil {
		t.Fatal("expected rejection of unregistered identifier")
	}
}

func TestFunctionTable(t *testing.T) {
	e := NewEngine()
	cases := []struct {
		expr string
		want float64
	}{
		{"sqrt(16)", 4},
		{"pow(2,10)", 1024},
		{"min(3,1,2)", 1},
		{"max(3,1,2)", 3},
		{"round(3.14159,2)", 3.14},
		{"abs(-5)", 5},
		{"sum(1,2,3)", 6},
		{"len(1,2,3,4)", 4},
		{"floor(3.9)", 3},
		{"ceil(3.1)", 4},
	}
	for _, c := range cases {
		v, err := e.Evaluate(c.expr, 0)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", c.expr, err)
		}
		if math.Abs(v-c.want) > 1e-9 {
			t.Errorf("%q: got %v want %v", c.expr, v, c.want)
		}
	}
}

func TestTest(t *testing.T) {
	e := NewEngine()
	r := e.Test("val*2+1", 10)
	if !r.Valid || r.Result == nil || *r.Result != 21 {
		t.Fatalf("unexpected result %+v", r)
	}
	r = e.Test("__import__('os')", 10)
	if r.Valid {
		t.Fatalf("expected invalid, got %+v", r)
	}
}
