package region

import (
	"errors"
	"fmt"
)

var ErrShortRegion = errors.New("region file shorter than its header tables")

// Error records a failure on a single region file inside a batch.
type Error struct {
	Pos Pos
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s region %s: %v", e.Op, e.Pos.FileName(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Collector gathers per-region failures so one bad file never stops its siblings.
type Collector struct {
	errs []error
}

func (c *Collector) Add(pos Pos, op string, err error) {
	if err == nil {
		return
	}
	c.errs = append(c.errs, &Error{Pos: pos, Op: op, Err: err})
}

func (c *Collector) Len() int {
	return len(c.errs)
}

// Err chains every collected failure, or returns nil when there were none.
func (c *Collector) Err() error {
	return errors.Join(c.errs...)
}

// FailedPositions lists the regions named by the *Error values inside err.
func FailedPositions(err error) []Pos {
	if err == nil {
		return nil
	}
	var out []Pos
	var walk func(error)
	walk = func(e error) {
		if re, ok := e.(*Error); ok {
			out = append(out, re.Pos)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		if inner := errors.Unwrap(e); inner != nil {
			walk(inner)
		}
	}
	walk(err)
	return out
}
