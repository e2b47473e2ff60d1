package errlog

import (
	"regexp"
	"strconv"
	"strings"
)

// tracedError carries a textual goroutine stack alongside an error, typically
// captured with debug.Stack() while recovering from a panic.
type tracedError struct {
	err   error
	trace string
}

func (t *tracedError) Error() string { return t.err.Error() }
func (t *tracedError) Unwrap() error { return t.err }

// WithTrace attaches trace to err. Persist parses it for the origin when err
// carries no fault frame.
func WithTrace(err error, trace string) error {
	if err == nil {
		return nil
	}
	return &tracedError{err: err, trace: trace}
}

// fileLineRe matches the location line under each function in a Go stack dump:
// "\t/src/app/internal/auth/identity.go:88 +0x1c4".
var fileLineRe = regexp.MustCompile(`^\s+(\S+\.go):(\d+)`)

// parseTrace returns the first non-runtime frame below the panic site.
// Frames above the last "panic(" line belong to the recovering code and are
// skipped. Anything unparseable yields ok=false.
func parseTrace(trace string) (procedure string, line int, ok bool) {
	lines := strings.Split(trace, "\n")

	start := 0
	for i, l := range lines {
		if strings.HasPrefix(l, "panic(") {
			start = i + 1
		}
	}

	for i := start; i+1 < len(lines); i++ {
		fn := lines[i]
		if fn == "" || strings.HasPrefix(fn, "\t") || strings.HasPrefix(fn, "goroutine ") {
			continue
		}
		m := fileLineRe.FindStringSubmatch(lines[i+1])
		if m == nil {
			continue
		}
		name := funcName(fn)
		if isRuntimeFunc(name) {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", 0, false
		}
		return shortFunc(name), n, true
	}
	return "", 0, false
}

// funcName strips the argument list from a stack function line:
// "pkg.(*T).M(0xc000010000, 0x2)" -> "pkg.(*T).M".
func funcName(l string) string {
	l = strings.TrimSpace(l)
	l = strings.TrimPrefix(l, "created by ")
	if strings.HasSuffix(l, ")") {
		if i := strings.LastIndex(l, "("); i > 0 {
			return l[:i]
		}
	}
	if i := strings.Index(l, " in goroutine"); i > 0 {
		return l[:i]
	}
	return l
}

func isRuntimeFunc(name string) bool {
	return strings.HasPrefix(name, "runtime.") || strings.HasPrefix(name, "runtime/")
}
