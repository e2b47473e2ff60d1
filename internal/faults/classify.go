package faults

import (
	"errors"
	"runtime"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Severity is the ordinal weight of a logged fault. Persisted as its int value.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error numbers persisted with each record. Explicit codes keep the numbering
// of the catalog's ErrorLog table (0x801316xx); the kind numbers follow the
// HRESULTs the catalog already stores for the matching fault kinds.
const (
	numberNilDereference   int32 = -2147467261 // 0x80004003
	numberInvalidOperation int32 = -2146233079 // 0x80131509
	numberInvalidArgument  int32 = -2147024809 // 0x80070057
	numberUnclassified     int32 = -2146233088 // 0x80131500
	numberExplicitDefault  int32 = -2146232832 // 0x80131600
)

var explicitNumbers = map[int]int32{
	100: -2146232816, // 0x80131610
	200: -2146232800, // 0x80131620
	300: -2146232784, // 0x80131630
	400: -2146232768, // 0x80131640
	401: -2146232767, // 0x80131641
	404: -2146232764, // 0x80131644
	409: -2146232759, // 0x80131649
	500: -2146232752, // 0x80131650
}

var explicitSeverities = map[int]Severity{
	100: SeverityLow,
	200: SeverityMedium,
	300: SeverityHigh,
	400: SeverityCritical,
	401: SeverityCritical,
	404: SeverityCritical,
	409: SeverityCritical,
}

// Classification is the result of Classify.
// State is the explicit code of a *Fault, nil for every other error.
type Classification struct {
	Severity Severity
	Number   int32
	State    *int
}

// Classify resolves err to a severity and error number. It is total: every
// error, nil included, gets exactly one classification.
//
// A *Fault's explicit code wins over the kind of anything it wraps. Under the
// kind rule an application fault is medium, a nil dereference critical, an
// invalid operation high, a bad argument medium and anything else low.
func Classify(err error) Classification {
	f, ok := As(err)
	if !ok {
		sev, num := classifyKind(err)
		return Classification{Severity: sev, Number: num}
	}

	code := f.Code
	// Unmapped codes keep the kind rule's entry for application faults.
	c := Classification{Severity: SeverityMedium, Number: numberExplicitDefault, State: &code}
	if sev, ok := explicitSeverities[code]; ok {
		c.Severity = sev
	}
	if n, ok := explicitNumbers[code]; ok {
		c.Number = n
	}
	return c
}

func classifyKind(err error) (Severity, int32) {
	switch {
	case err == nil:
		return SeverityLow, numberUnclassified
	case isNilDereference(err):
		return SeverityCritical, numberNilDereference
	case errors.Is(err, ErrInvalidOperation):
		return SeverityHigh, numberInvalidOperation
	case isInvalidArgument(err):
		return SeverityMedium, numberInvalidArgument
	default:
		return SeverityLow, numberUnclassified
	}
}

func isNilDereference(err error) bool {
	if errors.Is(err, ErrNilDereference) {
		return true
	}
	var re runtime.Error
	return errors.As(err, &re) && strings.Contains(re.Error(), "nil pointer")
}

func isInvalidArgument(err error) bool {
	if errors.Is(err, ErrInvalidArgument) {
		return true
	}
	var verrs validation.Errors
	return errors.As(err, &verrs)
}
