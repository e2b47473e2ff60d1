// Package errlog appends classified failures to the error_log table.
//
// Persist is the only entry point handlers use. It never fails from the
// caller's point of view: a record that cannot be written is reported on the
// slog side channel and dropped.
package errlog

import (
	"context"
	"errors"
	"log/slog"
	"os/user"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/MGallo-Code/bikeville/internal/faults"
	"github.com/MGallo-Code/bikeville/internal/store"
)

// DefaultTimezone is the civil zone error times are recorded in.
const DefaultTimezone = "Europe/Rome"

// writeTimeout bounds a single insert. The write is detached from request
// cancellation so a client hanging up still leaves a record.
const writeTimeout = 5 * time.Second

// Repository persists error records.
// Satisfied by *store.PostgresStore.
type Repository interface {
	InsertErrorLog(ctx context.Context, e *store.ErrorLog) (int, error)
}

// Logger classifies errors and writes them through a Repository.
// Safe for concurrent use.
type Logger struct {
	repo     Repository
	location *time.Location

	// Swappable for tests.
	now    func() time.Time
	osUser func() string
}

// New returns a Logger recording times in the named IANA zone.
// An empty zone means DefaultTimezone.
func New(repo Repository, timezone string) (*Logger, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Logger{
		repo:     repo,
		location: loc,
		now:      time.Now,
		osUser:   processUser,
	}, nil
}

// Persist records err on behalf of userName. A nil err is ignored.
// When userName is empty the OS account running the process is recorded.
func (l *Logger) Persist(ctx context.Context, err error, userName string) {
	if err == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Error("error log panicked", "panic", p, "error", err.Error())
		}
	}()

	rec := l.record(err, userName)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if _, werr := l.repo.InsertErrorLog(wctx, rec); werr != nil {
		slog.Error("error log write failed",
			"write_error", werr,
			"error", rec.ErrorMessage,
			"error_number", rec.ErrorNumber,
			"severity", faults.Severity(rec.ErrorSeverity).String(),
		)
	}
}

// record builds the row for err without touching the repository.
func (l *Logger) record(err error, userName string) *store.ErrorLog {
	c := faults.Classify(err)

	rec := &store.ErrorLog{
		ErrorTime:     l.now().In(l.location),
		UserName:      l.userName(userName),
		ErrorNumber:   c.Number,
		ErrorSeverity: int(c.Severity),
		ErrorState:    c.State,
		ErrorMessage:  err.Error(),
	}

	if proc, line, ok := origin(err); ok {
		rec.ErrorProcedure = &proc
		rec.ErrorLine = &line
	}
	return rec
}

func (l *Logger) userName(given string) string {
	if given != "" {
		return given
	}
	if u := l.osUser(); u != "" {
		return u
	}
	return "unknown"
}

// origin returns the function and line an error was raised at.
// A fault's captured frame wins over an attached trace.
func origin(err error) (string, int, bool) {
	if f, ok := faults.As(err); ok && f.Frame != nil {
		return shortFunc(f.Frame.Function), f.Frame.Line, true
	}
	var t *tracedError
	if errors.As(err, &t) {
		return parseTrace(t.trace)
	}
	return "", 0, false
}

// shortFunc drops the import path, keeping "pkg.(*Type).Method".
func shortFunc(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		return fn[i+1:]
	}
	return fn
}

var processUser = sync.OnceValue(func() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
})
