package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical reconstruction defaults file.
const DefaultConfigPath = "config/reco.defaults.json"

// Material correction types.
const (
	MaterialNone = "none"
	MaterialLUT  = "lut"
)

// RecoConfig is the flat option set of the reconstruction. Every field is
// optional; the Get* accessors supply defaults for fields left unset, so
// partial files are safe.
type RecoConfig struct {
	// Environment
	MaterialCorrectionType *string `json:"material_correction_type,omitempty"` // "none" or "lut"
	ConditionsDB           *string `json:"conditions_db,omitempty"`
	GRPMagPath             *string `json:"grp_mag_path,omitempty"`
	GRPPath                *string `json:"grp_path,omitempty"`
	MatLUTPath             *string `json:"mat_lut_path,omitempty"`
	FieldMapPath           *string `json:"field_map_path,omitempty"`
	BzOnly                 *bool   `json:"bz_only,omitempty"`

	DCAMaxStep *float64 `json:"dca_max_step,omitempty"` // cm

	// Vertex fitter
	PropToDCA        *bool    `json:"prop_to_dca,omitempty"`
	UseAbsDCA        *bool    `json:"use_abs_dca,omitempty"`
	MaxR             *float64 `json:"max_r,omitempty"`      // cm
	MaxDZIni         *float64 `json:"max_dz_ini,omitempty"` // cm
	MinParamChange   *float64 `json:"min_param_change,omitempty"`
	MinRelChi2Change *float64 `json:"min_rel_chi2_change,omitempty"`
	MaxIter          *int     `json:"max_iter,omitempty"`

	// Cascade-tier selection
	MinNoClsTrackedCascade        *int     `json:"min_no_cls_tracked_cascade,omitempty"`
	MinNoClsTrackedPionOrKaon     *int     `json:"min_no_cls_tracked_pion_or_kaon,omitempty"`
	UseSel8Trigger                *bool    `json:"use_sel8_trigger,omitempty"`
	MassWindowTrackedOmega        *float64 `json:"mass_window_tracked_omega,omitempty"`
	MassWindowXiExclTrackedOmega  *float64 `json:"mass_window_xi_excl_tracked_omega,omitempty"`
	MassWindowTrackedXi           *float64 `json:"mass_window_tracked_xi,omitempty"`
	MassWindowLambda              *float64 `json:"mass_window_lambda,omitempty"`
	MassWindowXiC                 *float64 `json:"mass_window_xic,omitempty"`
	MassWindowOmegaC              *float64 `json:"mass_window_omegac,omitempty"`
	MaxMatchingChi2TrackedCascade *float64 `json:"max_matching_chi2_tracked_cascade,omitempty"`
	RecalculateMasses             *bool    `json:"recalculate_masses,omitempty"`

	// PID
	MaxNSigmaBachelor *float64 `json:"max_nsigma_bachelor,omitempty"`
	MaxNSigmaV0Pr     *float64 `json:"max_nsigma_v0_pr,omitempty"`
	MaxNSigmaV0Pi     *float64 `json:"max_nsigma_v0_pi,omitempty"`
	MaxNSigmaPion     *float64 `json:"max_nsigma_pion,omitempty"`
	MaxNSigmaKaon     *float64 `json:"max_nsigma_kaon,omitempty"`

	// Bachelor-candidate track quality
	ItsNClsMin              *int     `json:"its_ncls_min,omitempty"`
	TpcNClsFindableFraction *float64 `json:"tpc_ncls_findable_fraction,omitempty"`
	TpcChi2NClMax           *float64 `json:"tpc_chi2_ncl_max,omitempty"`
	ItsChi2NClMax           *float64 `json:"its_chi2_ncl_max,omitempty"`
}

// EmptyRecoConfig returns a RecoConfig with all fields unset.
func EmptyRecoConfig() *RecoConfig {
	return &RecoConfig{}
}

// LoadRecoConfig loads a RecoConfig from a JSON file with a .json extension
// no larger than 1MB.
func LoadRecoConfig(path string) (*RecoConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRecoConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RecoConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadRecoConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *RecoConfig) Validate() error {
	if c.MaterialCorrectionType != nil {
		switch *c.MaterialCorrectionType {
		case MaterialNone, MaterialLUT:
		default:
			return fmt.Errorf("material_correction_type must be %q or %q, got %q", MaterialNone, MaterialLUT, *c.MaterialCorrectionType)
		}
	}

	if c.MaxR != nil && *c.MaxR <= 0 {
		return fmt.Errorf("max_r must be positive, got %f", *c.MaxR)
	}
	if c.MaxDZIni != nil && *c.MaxDZIni < 0 {
		return fmt.Errorf("max_dz_ini must be non-negative, got %f", *c.MaxDZIni)
	}
	if c.MinParamChange != nil && *c.MinParamChange <= 0 {
		return fmt.Errorf("min_param_change must be positive, got %f", *c.MinParamChange)
	}
	if c.MinRelChi2Change != nil && (*c.MinRelChi2Change <= 0 || *c.MinRelChi2Change > 1) {
		return fmt.Errorf("min_rel_chi2_change must be in (0, 1], got %f", *c.MinRelChi2Change)
	}
	if c.MaxIter != nil && *c.MaxIter < 1 {
		return fmt.Errorf("max_iter must be at least 1, got %d", *c.MaxIter)
	}
	if c.DCAMaxStep != nil && *c.DCAMaxStep <= 0 {
		return fmt.Errorf("dca_max_step must be positive, got %f", *c.DCAMaxStep)
	}

	windows := map[string]*float64{
		"mass_window_tracked_omega":         c.MassWindowTrackedOmega,
		"mass_window_xi_excl_tracked_omega": c.MassWindowXiExclTrackedOmega,
		"mass_window_tracked_xi":            c.MassWindowTrackedXi,
		"mass_window_lambda":                c.MassWindowLambda,
		"mass_window_xic":                   c.MassWindowXiC,
		"mass_window_omegac":                c.MassWindowOmegaC,
		"max_matching_chi2_tracked_cascade": c.MaxMatchingChi2TrackedCascade,
		"max_nsigma_bachelor":               c.MaxNSigmaBachelor,
		"max_nsigma_v0_pr":                  c.MaxNSigmaV0Pr,
		"max_nsigma_v0_pi":                  c.MaxNSigmaV0Pi,
		"max_nsigma_pion":                   c.MaxNSigmaPion,
		"max_nsigma_kaon":                   c.MaxNSigmaKaon,
		"tpc_chi2_ncl_max":                  c.TpcChi2NClMax,
		"its_chi2_ncl_max":                  c.ItsChi2NClMax,
	}
	for name, v := range windows {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}

	if c.TpcNClsFindableFraction != nil {
		if *c.TpcNClsFindableFraction < 0 || *c.TpcNClsFindableFraction > 1 {
			return fmt.Errorf("tpc_ncls_findable_fraction must be between 0 and 1, got %f", *c.TpcNClsFindableFraction)
		}
	}
	for name, v := range map[string]*int{
		"min_no_cls_tracked_cascade":      c.MinNoClsTrackedCascade,
		"min_no_cls_tracked_pion_or_kaon": c.MinNoClsTrackedPionOrKaon,
		"its_ncls_min":                    c.ItsNClsMin,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, *v)
		}
	}

	return nil
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func getString(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetMaterialCorrectionType returns the material_correction_type value or "lut".
func (c *RecoConfig) GetMaterialCorrectionType() string {
	return getString(c.MaterialCorrectionType, MaterialLUT)
}

// UseMaterialLUT reports whether the material lookup table is loaded.
func (c *RecoConfig) UseMaterialLUT() bool {
	return c.GetMaterialCorrectionType() == MaterialLUT
}

func (c *RecoConfig) GetConditionsDB() string { return getString(c.ConditionsDB, "conditions.db") }
func (c *RecoConfig) GetGRPMagPath() string   { return getString(c.GRPMagPath, "GLO/Config/GRPMagField") }
func (c *RecoConfig) GetGRPPath() string      { return getString(c.GRPPath, "GLO/GRP/GRP") }
func (c *RecoConfig) GetMatLUTPath() string   { return getString(c.MatLUTPath, "GLO/Param/MatLUT") }
func (c *RecoConfig) GetFieldMapPath() string { return getString(c.FieldMapPath, "GLO/Param/FieldMap") }

// GetBzOnly returns the bz_only value or the default (uniform field).
func (c *RecoConfig) GetBzOnly() bool { return getBool(c.BzOnly, true) }

// GetDCAMaxStep returns the dca_max_step value or the default.
func (c *RecoConfig) GetDCAMaxStep() float64 { return getFloat(c.DCAMaxStep, 2) }

func (c *RecoConfig) GetPropToDCA() bool             { return getBool(c.PropToDCA, true) }
func (c *RecoConfig) GetUseAbsDCA() bool             { return getBool(c.UseAbsDCA, true) }
func (c *RecoConfig) GetMaxR() float64               { return getFloat(c.MaxR, 200) }
func (c *RecoConfig) GetMaxDZIni() float64           { return getFloat(c.MaxDZIni, 4) }
func (c *RecoConfig) GetMinParamChange() float64     { return getFloat(c.MinParamChange, 1e-3) }
func (c *RecoConfig) GetMinRelChi2Change() float64   { return getFloat(c.MinRelChi2Change, 0.9) }
func (c *RecoConfig) GetMaxIter() int                { return getInt(c.MaxIter, 20) }
func (c *RecoConfig) GetMinNoClsTrackedCascade() int { return getInt(c.MinNoClsTrackedCascade, 70) }

// GetMinNoClsTrackedPionOrKaon returns the minimum TPC cluster count of the
// bachelor candidate.
func (c *RecoConfig) GetMinNoClsTrackedPionOrKaon() int {
	return getInt(c.MinNoClsTrackedPionOrKaon, 70)
}

func (c *RecoConfig) GetUseSel8Trigger() bool { return getBool(c.UseSel8Trigger, true) }

func (c *RecoConfig) GetMassWindowTrackedOmega() float64 {
	return getFloat(c.MassWindowTrackedOmega, 0.05)
}

func (c *RecoConfig) GetMassWindowXiExclTrackedOmega() float64 {
	return getFloat(c.MassWindowXiExclTrackedOmega, 0.005)
}

// GetMassWindowTrackedXi returns the Ξ window; zero disables the Ξ path.
func (c *RecoConfig) GetMassWindowTrackedXi() float64 { return getFloat(c.MassWindowTrackedXi, 0) }

// GetMassWindowLambda returns the Λ window; zero disables it.
func (c *RecoConfig) GetMassWindowLambda() float64 { return getFloat(c.MassWindowLambda, 0) }

func (c *RecoConfig) GetMassWindowXiC() float64    { return getFloat(c.MassWindowXiC, 0.1) }
func (c *RecoConfig) GetMassWindowOmegaC() float64 { return getFloat(c.MassWindowOmegaC, 0.1) }

// GetMaxMatchingChi2TrackedCascade returns the tracked-cascade matching χ²
// cut; zero disables it.
func (c *RecoConfig) GetMaxMatchingChi2TrackedCascade() float64 {
	return getFloat(c.MaxMatchingChi2TrackedCascade, 0)
}

func (c *RecoConfig) GetRecalculateMasses() bool { return getBool(c.RecalculateMasses, true) }

func (c *RecoConfig) GetMaxNSigmaBachelor() float64 { return getFloat(c.MaxNSigmaBachelor, 5) }
func (c *RecoConfig) GetMaxNSigmaV0Pr() float64     { return getFloat(c.MaxNSigmaV0Pr, 5) }
func (c *RecoConfig) GetMaxNSigmaV0Pi() float64     { return getFloat(c.MaxNSigmaV0Pi, 5) }
func (c *RecoConfig) GetMaxNSigmaPion() float64     { return getFloat(c.MaxNSigmaPion, 5) }
func (c *RecoConfig) GetMaxNSigmaKaon() float64     { return getFloat(c.MaxNSigmaKaon, 5) }

func (c *RecoConfig) GetItsNClsMin() int { return getInt(c.ItsNClsMin, 4) }

func (c *RecoConfig) GetTpcNClsFindableFraction() float64 {
	return getFloat(c.TpcNClsFindableFraction, 0.8)
}

func (c *RecoConfig) GetTpcChi2NClMax() float64 { return getFloat(c.TpcChi2NClMax, 4) }
func (c *RecoConfig) GetItsChi2NClMax() float64 { return getFloat(c.ItsChi2NClMax, 36) }

// JSON returns the configuration as compact JSON for provenance records.
func (c *RecoConfig) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(data)
}
