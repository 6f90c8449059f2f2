package botguard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dop251/goja"
)

// entryPoint is the global function a solver script must define. It takes
// the Input as an object and returns either a token string or
// {token: string, ttlSeconds: number}.
const entryPoint = "bgAttest"

// ScriptSolver runs a JavaScript attestation script with goja. The script
// is compiled once; each Attest call gets a fresh runtime.
type ScriptSolver struct {
	name    string
	program *goja.Program
	now     func() time.Time
}

// NewScriptSolver compiles the script at path.
func NewScriptSolver(path string) (*ScriptSolver, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read botguard script: %w", err)
	}
	return NewScriptSolverFromSource(path, string(src))
}

// NewScriptSolverFromSource compiles src; name is used in error positions.
func NewScriptSolverFromSource(name, src string) (*ScriptSolver, error) {
	prog, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, fmt.Errorf("compile botguard script: %w", err)
	}
	return &ScriptSolver{name: name, program: prog, now: time.Now}, nil
}

// Attest runs the script's bgAttest function. Cancelling ctx interrupts it.
func (s *ScriptSolver) Attest(ctx context.Context, in Input) (Output, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	_ = vm.Set("console", map[string]any{"log": func(...any) {}})

	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	if _, err := vm.RunProgram(s.program); err != nil {
		return Output{}, fmt.Errorf("run botguard script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get(entryPoint))
	if !ok {
		return Output{}, fmt.Errorf("%s: function %s not defined", s.name, entryPoint)
	}
	res, err := fn(goja.Undefined(), vm.ToValue(in))
	if err != nil {
		return Output{}, fmt.Errorf("%s failed: %w", entryPoint, err)
	}
	if goja.IsUndefined(res) || goja.IsNull(res) {
		return Output{}, errors.New(entryPoint + " returned no token")
	}

	if tok, ok := res.Export().(string); ok {
		return Output{Token: tok}, nil
	}
	obj := res.ToObject(vm)
	var out Output
	if v := obj.Get("token"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		out.Token = v.String()
	}
	if v := obj.Get("ttlSeconds"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		if n := v.ToInteger(); n > 0 {
			out.ExpiresAt = s.now().Add(time.Duration(n) * time.Second)
		}
	}
	if out.Token == "" {
		return Output{}, errors.New(entryPoint + " returned an empty token")
	}
	return out, nil
}
