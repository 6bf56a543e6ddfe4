package validate

// driver.go: the validate / repair loop.
//
//	IDLE -> VALIDATING -> (REPAIRED -> VALIDATING)* -> DONE{valid|invalid}
//
// Each VALIDATING step is a fresh Run from disk. A run that repaired the
// dataset moves to REPAIRED and validates again, at most MaxRuns times.

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cocovalidate/internal/diag"
)

// ErrNotValidated is returned by Mark for an outcome that is not valid.
var ErrNotValidated = errors.New("dataset not validated")

// MarkPrefix starts the validation mark; the signature follows it.
const MarkPrefix = "Validation passed and signed: "

// State is a driver state.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateRepaired
	StateValid
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateRepaired:
		return "repaired"
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the verdict of Validate.
type Outcome struct {
	State State

	// Runs counts the passes performed, repairs included.
	Runs int

	// Diagnostics and Stats come from the last pass.
	Diagnostics diag.List
	Stats       []SplitStat
}

// Valid reports whether the dataset may be signed.
func (o *Outcome) Valid() bool { return o.State == StateValid }

// Errors counts error diagnostics.
func (o *Outcome) Errors() int { return o.Diagnostics.Count(diag.SeverityError) }

// Validate runs passes until one needs no repair, then decides.
func (v *Validator) Validate(ctx context.Context) (*Outcome, error) {
	out := &Outcome{State: StateIdle}
	maxRuns := v.settings.MaxRuns

	for {
		v.transition(out, StateValidating)
		out.Runs++
		res, err := v.Run(ctx)
		if err != nil {
			return nil, err
		}
		out.Diagnostics, out.Stats = res.Diagnostics, res.Stats
		if !res.Restart {
			break
		}
		if out.Runs >= maxRuns {
			out.Diagnostics = append(out.Diagnostics, diag.Errorf(
				"Auto-fix was still changing the dataset after %d runs; the results above may be out of date.", out.Runs))
			break
		}
		v.transition(out, StateRepaired)
	}

	if out.Diagnostics.Has(diag.SeverityError) || out.Diagnostics.Has(diag.SeverityCritical) {
		v.transition(out, StateInvalid)
	} else {
		v.transition(out, StateValid)
	}
	return out, nil
}

func (v *Validator) transition(out *Outcome, to State) {
	v.log.Debug("state", zap.Stringer("from", out.State), zap.Stringer("to", to), zap.Int("run", out.Runs))
	out.State = to
}

// FailureLine is the summary printed for an outcome that is not valid.
func FailureLine(o *Outcome) string {
	return fmt.Sprintf("Dataset not validated, %d error(s) found.", o.Errors())
}

// Mark signs a valid dataset, appends the validation mark to the side log
// and returns the mark line.
func (v *Validator) Mark(o *Outcome) (string, error) {
	if !o.Valid() {
		return "", fmt.Errorf("%w: %d error(s) found", ErrNotValidated, o.Errors())
	}
	sig, err := v.signer.Sign(v.opts.Fs, v.opts.Root)
	if err != nil {
		return "", fmt.Errorf("sign dataset: %w", err)
	}
	line := MarkPrefix + sig
	if err := v.side.Append(line); err != nil {
		return "", err
	}
	v.log.Info("dataset signed", zap.String("signature", sig))
	return line, nil
}

// Sign returns the dataset signature without validating.
func (v *Validator) Sign() (string, error) {
	return v.signer.Sign(v.opts.Fs, v.opts.Root)
}
