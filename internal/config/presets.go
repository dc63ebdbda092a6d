package config

import (
	"fmt"
	"sort"
)

type presetKey struct {
	tier Tier
	kind Kind
}

var Presets = map[presetKey]Params{
	{TierCompact, KindGalaxy}: {
		Gravity: 20, InteractionRate: 0.5, TimeStep: 0.001, BlackHoleForce: 100, Luminosity: 1,
		ColorScaleMax: 4, ColorScalePercent: 0.4, Bloom: 1,
		Count: 10000, Radius: 50, Height: 5, CenterRotationExponent: 2, Velocity: 7, Pulse: 3.18,
	},
	{TierCompact, KindUniverse}: {
		Gravity: 225, InteractionRate: 0.05, TimeStep: 0.0001, BlackHoleForce: 100, Luminosity: 0.25,
		ColorScaleMax: 2, ColorScalePercent: 20, Bloom: 0.7,
		Count: 100000, Radius: 2, Height: 5, CenterRotationExponent: 2, Velocity: 15, Pulse: 3.18,
		AutoRotation: true,
	},
	{TierCompact, KindCollision}: {
		Gravity: 40, InteractionRate: 0.5, TimeStep: 0.001, BlackHoleForce: 100, Luminosity: 1,
		ColorScaleMax: 15, ColorScalePercent: 1.5, Bloom: 1,
		Count: 10000, Radius: 50, Height: 5, CenterRotationExponent: 2, Velocity: 7, Pulse: 3.18,
	},
	{TierFull, KindGalaxy}: {
		Gravity: 20, InteractionRate: 1, TimeStep: 0.001, BlackHoleForce: 100, Luminosity: 1,
		ColorScaleMax: 50, ColorScalePercent: 5, Bloom: 1,
		Count: 30000, Radius: 100, Height: 5, CenterRotationExponent: 2, Velocity: 15, Pulse: 5,
	},
	{TierFull, KindUniverse}: {
		Gravity: 20, InteractionRate: 0.05, TimeStep: 0.0001, BlackHoleForce: 100, Luminosity: 0.25,
		ColorScaleMax: 2, ColorScalePercent: 20, Bloom: 0.7,
		Count: 1000000, Radius: 2, Height: 5, CenterRotationExponent: 2, Velocity: 15, Pulse: 5,
		AutoRotation: true,
	},
	{TierFull, KindCollision}: {
		Gravity: 20, InteractionRate: 1, TimeStep: 0.001, BlackHoleForce: 100, Luminosity: 1,
		ColorScaleMax: 19, ColorScalePercent: 1.9, Bloom: 1,
		Count: 30000, Radius: 100, Height: 5, CenterRotationExponent: 2, Velocity: 12, Pulse: 5,
	},
}

// Preset returns a fresh copy of the parameter set for (tier, kind).
func Preset(tier Tier, kind Kind) (Params, error) {
	if !tier.Valid() {
		return Params{}, fmt.Errorf("%w: %d", ErrUnknownTier, int(tier))
	}
	if !kind.Valid() {
		return Params{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	p, ok := Presets[presetKey{tier, kind}]
	if !ok {
		return Params{}, fmt.Errorf("config: no preset for %s/%s", tier, kind)
	}
	p.Tier = tier
	p.Kind = kind
	return p, nil
}

// MustPreset is Preset for callers holding already-validated selectors.
func MustPreset(tier Tier, kind Kind) Params {
	p, err := Preset(tier, kind)
	if err != nil {
		panic(err)
	}
	return p
}

// ListPresets returns "tier/kind" names in a stable order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for key := range Presets {
		names = append(names, key.tier.String()+"/"+key.kind.String())
	}
	sort.Strings(names)
	return names
}
