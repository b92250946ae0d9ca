package delay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dogmatiq/linger"
)

var (
	ErrInvalidRange = errors.New("invalid delay range")
	ErrUnknownKind  = errors.New("unknown delay strategy")
)

// Strategy produces the wait applied by a worker before a message is
// marked delivered.
type Strategy interface {
	Next() time.Duration
}

// Kind selects a Strategy implementation.
type Kind int

const (
	KindConstant Kind = iota
	KindUniform
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindUniform:
		return "uniform"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a configuration value onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "constant", "fixed":
		return KindConstant, nil
	case "uniform", "random":
		return KindUniform, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Options configures New.
type Options struct {
	Kind     Kind
	Constant time.Duration
	Min      time.Duration
	Max      time.Duration
}

// New resolves opts into a Strategy.
func New(opts Options) (Strategy, error) {
	switch opts.Kind {
	case KindConstant:
		if opts.Constant < 0 {
			return nil, fmt.Errorf("%w: negative constant %s", ErrInvalidRange, opts.Constant)
		}
		return Constant(opts.Constant), nil
	case KindUniform:
		u, err := UniformRandom(opts.Min, opts.Max)
		if err != nil {
			return nil, err
		}
		return u, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, opts.Kind)
	}
}

// Constant always waits the same duration. Negative values wait zero.
type Constant time.Duration

func (c Constant) Next() time.Duration {
	if c < 0 {
		return 0
	}
	return time.Duration(c)
}

// Uniform draws each wait independently from [Min, Max].
type Uniform struct {
	Min time.Duration
	Max time.Duration
}

// UniformRandom returns a Uniform strategy over [min, max].
func UniformRandom(min, max time.Duration) (*Uniform, error) {
	if min < 0 || max < min {
		return nil, fmt.Errorf("%w: [%s, %s]", ErrInvalidRange, min, max)
	}
	return &Uniform{Min: min, Max: max}, nil
}

func (u *Uniform) Next() time.Duration {
	span := u.Max - u.Min
	if span <= 0 {
		return u.Min
	}
	return u.Min + linger.FullJitter(span)
}
