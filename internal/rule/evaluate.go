package rule

import (
	"regexp"
	"strings"
	"sync"

	"github.com/harutaka/shiwake/internal/model"
)

// Evaluator evaluates a single match condition against an extracted field
// value. Compiled regular expressions are cached across evaluations; a
// pattern that fails to compile is remembered as permanently non-matching.
type Evaluator struct {
	compiled map[string]*regexp.Regexp
	invalid  map[string]bool
	mu       sync.RWMutex
}

// NewEvaluator creates a condition evaluator with an empty regex cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		compiled: make(map[string]*regexp.Regexp),
		invalid:  make(map[string]bool),
	}
}

// Evaluate reports whether the condition holds for the given field value.
// An absent or empty field value never matches. Invalid regex patterns fail
// closed: they evaluate to false rather than surfacing an error.
func (e *Evaluator) Evaluate(cond model.MatchCondition, fieldValue string) bool {
	if fieldValue == "" {
		return false
	}

	if cond.Operator == model.OperatorRegex {
		// Regex runs against the original, non-normalized field value;
		// case insensitivity is handled by the compiled expression.
		re := e.compile(cond.Value, cond.CaseSensitive)
		if re == nil {
			return false
		}
		return re.MatchString(fieldValue)
	}

	value := fieldValue
	pattern := cond.Value
	if !cond.CaseSensitive {
		value = strings.ToLower(value)
		pattern = strings.ToLower(pattern)
	}

	switch cond.Operator {
	case model.OperatorContains:
		return strings.Contains(value, pattern)
	case model.OperatorEquals:
		return value == pattern
	case model.OperatorStartsWith:
		return strings.HasPrefix(value, pattern)
	case model.OperatorEndsWith:
		return strings.HasSuffix(value, pattern)
	}

	// Unknown operator: fail closed.
	return false
}

// compile returns the cached regex for a pattern, compiling it on first use.
// Returns nil for patterns that do not compile.
func (e *Evaluator) compile(pattern string, caseSensitive bool) *regexp.Regexp {
	source := pattern
	if !caseSensitive {
		source = "(?i)" + pattern
	}

	e.mu.RLock()
	re, ok := e.compiled[source]
	bad := e.invalid[source]
	e.mu.RUnlock()
	if ok {
		return re
	}
	if bad {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.compiled[source]; ok {
		return re
	}
	if e.invalid[source] {
		return nil
	}

	re, err := regexp.Compile(source)
	if err != nil {
		e.invalid[source] = true
		return nil
	}
	e.compiled[source] = re
	return re
}
