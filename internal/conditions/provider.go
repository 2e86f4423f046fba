package conditions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/omegac/internal/monitoring"
	"github.com/banshee-data/omegac/internal/track"
)

// ErrNoField means neither field object exists for a run. Reconstruction
// cannot continue without it.
var ErrNoField = errors.New("no magnetic field information")

// GRPObject is the global run parameters payload.
type GRPObject struct {
	NominalL3Field float64 `json:"nominal_l3_field"` // kG
}

// GRPMagField is the magnet currents payload.
type GRPMagField struct {
	L3Current     float64 `json:"l3_current"`     // A
	DipoleCurrent float64 `json:"dipole_current"` // A
}

// Bz converts the solenoid current to the nominal field, rounded to whole kG.
func (g GRPMagField) Bz() float64 {
	return math.Round(5 * g.L3Current / 30000)
}

// RunConditions is the environment for one acquisition run.
type RunConditions struct {
	Run         int
	Timestamp   int64
	Bz          float64            // nominal longitudinal field, kG
	Field       track.Field        // uniform or mapped field for propagation
	Material    *track.MaterialLUT // nil when material corrections are off
	FieldSource string             // object path the field came from
}

// Provider supplies per-run conditions.
type Provider interface {
	ConditionsForRun(ctx context.Context, run int, timestamp int64) (*RunConditions, error)
}

// Options selects the object paths and which corrections to load.
type Options struct {
	GRPMagPath     string
	GRPPath        string
	MatLUTPath     string
	FieldMapPath   string
	UseMaterialLUT bool
	BzOnly         bool
}

// CCDBProvider resolves run conditions from versioned objects.
type CCDBProvider struct {
	src  ObjectSource
	opts Options
}

// NewCCDBProvider returns a provider reading from src.
func NewCCDBProvider(src ObjectSource, opts Options) *CCDBProvider {
	return &CCDBProvider{src: src, opts: opts}
}

// ConditionsForRun resolves the field from the GRP object, falling back to
// the magnet currents. If neither exists the error wraps ErrNoField.
func (p *CCDBProvider) ConditionsForRun(ctx context.Context, run int, timestamp int64) (*RunConditions, error) {
	rc := &RunConditions{Run: run, Timestamp: timestamp}

	var grp GRPObject
	err := p.load(ctx, p.opts.GRPPath, timestamp, &grp)
	switch {
	case err == nil:
		rc.Bz = grp.NominalL3Field
		rc.FieldSource = p.opts.GRPPath
	case errors.Is(err, ErrNotFound):
		var mag GRPMagField
		err = p.load(ctx, p.opts.GRPMagPath, timestamp, &mag)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: got nothing for path %s of object GRPMagField and %s of object GRPObject for run %d timestamp %d",
				ErrNoField, p.opts.GRPMagPath, p.opts.GRPPath, run, timestamp)
		}
		if err != nil {
			return nil, err
		}
		rc.Bz = mag.Bz()
		rc.FieldSource = p.opts.GRPMagPath
	default:
		return nil, err
	}

	rc.Field = track.UniformField(rc.Bz)
	if !p.opts.BzOnly {
		var fm track.FieldMap
		err := p.load(ctx, p.opts.FieldMapPath, timestamp, &fm)
		switch {
		case err == nil:
			if verr := fm.Validate(); verr != nil {
				return nil, fmt.Errorf("field map %s: %w", p.opts.FieldMapPath, verr)
			}
			rc.Field = &fm
		case errors.Is(err, ErrNotFound):
			monitoring.Logf("[conditions] no field map at %s for run %d, using uniform Bz=%.2f kG", p.opts.FieldMapPath, run, rc.Bz)
		default:
			return nil, err
		}
	}

	if p.opts.UseMaterialLUT {
		var lut track.MaterialLUT
		err := p.load(ctx, p.opts.MatLUTPath, timestamp, &lut)
		switch {
		case err == nil:
			if verr := lut.Validate(); verr != nil {
				return nil, fmt.Errorf("material LUT %s: %w", p.opts.MatLUTPath, verr)
			}
			rc.Material = &lut
		case errors.Is(err, ErrNotFound):
			monitoring.Logf("[conditions] no material LUT at %s for run %d, material corrections disabled", p.opts.MatLUTPath, run)
		default:
			return nil, err
		}
	}

	monitoring.Logf("[conditions] run %d: Bz=%.2f kG from %s", run, rc.Bz, rc.FieldSource)
	return rc, nil
}

func (p *CCDBProvider) load(ctx context.Context, path string, timestamp int64, v interface{}) error {
	obj, err := p.src.GetForTimestamp(ctx, path, timestamp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(obj.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
