package cipher

import (
	"regexp"
	"strconv"
	"strings"
)

type opKind int

const (
	opReverse opKind = iota + 1
	opSplice
	opSwap
)

type step struct {
	op  opKind
	arg int
}

var (
	// function(a){a=a.split("");XY.ab(a,3);...;return a.join("")}
	decipherFuncRe = regexp.MustCompile(`function\s*[\w$]*\s*\(\s*([\w$]+)\s*\)\s*\{([^{}]*?\.split\(\s*""\s*\)[^{}]*?\.join\(\s*""\s*\)[^{}]*)\}`)
	// XY.ab(a,3) or XY.ab(a)
	helperCallRe = regexp.MustCompile(`([\w$]+)\.([\w$]+)\(\s*([\w$]+)\s*(?:,\s*(\d+)\s*)?\)`)
	// ab:function(a,b){...}
	helperMethodRe = regexp.MustCompile(`([\w$]+)\s*:\s*function\s*\([^)]*\)\s*\{([^}]*)\}`)
)

// extractSteps finds the signature transform in playerJS and returns it as
// a list of steps, or nil when the layout is not recognised.
func extractSteps(playerJS string) []step {
	for _, fm := range decipherFuncRe.FindAllStringSubmatch(playerJS, -1) {
		param, body := fm[1], fm[2]
		calls := helperCallRe.FindAllStringSubmatch(body, -1)
		if len(calls) == 0 {
			continue
		}
		obj := ""
		for _, c := range calls {
			if c[3] == param {
				obj = c[1]
				break
			}
		}
		if obj == "" {
			continue
		}
		ops := helperOps(playerJS, obj)
		if len(ops) == 0 {
			continue
		}

		var steps []step
		ok := true
		for _, c := range calls {
			if c[1] != obj || c[3] != param {
				continue
			}
			op, known := ops[c[2]]
			if !known {
				ok = false
				break
			}
			arg := 0
			if c[4] != "" {
				arg, _ = strconv.Atoi(c[4])
			}
			steps = append(steps, step{op: op, arg: arg})
		}
		if ok && len(steps) > 0 {
			return steps
		}
	}
	return nil
}

// helperOps maps the methods of the transform object obj to operations.
func helperOps(playerJS, obj string) map[string]opKind {
	objRe := regexp.MustCompile(`(?:var|let|const)\s+` + regexp.QuoteMeta(obj) + `\s*=\s*\{([\s\S]*?)\}\s*;`)
	m := objRe.FindStringSubmatch(playerJS)
	if len(m) < 2 {
		return nil
	}
	objBody := m[1]
	ops := make(map[string]opKind)
	for _, fm := range helperMethodRe.FindAllStringSubmatch(objBody, -1) {
		name, body := fm[1], fm[2]
		switch {
		case strings.Contains(body, ".reverse()"):
			ops[name] = opReverse
		case strings.Contains(body, ".splice("):
			ops[name] = opSplice
		case strings.Contains(body, "%") && strings.Contains(body, ".length]"):
			ops[name] = opSwap
		}
	}
	return ops
}

// apply runs steps over sig.
func apply(steps []step, sig string) string {
	r := []rune(sig)
	for _, st := range steps {
		switch st.op {
		case opReverse:
			for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
				r[i], r[j] = r[j], r[i]
			}
		case opSplice:
			if st.arg >= 0 && st.arg <= len(r) {
				r = r[st.arg:]
			}
		case opSwap:
			if len(r) > 1 {
				n := st.arg % len(r)
				r[0], r[n] = r[n], r[0]
			}
		}
	}
	return string(r)
}
