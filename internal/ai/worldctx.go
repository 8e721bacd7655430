package ai

// Weather affects sight and hearing multipliers.
type Weather int

const (
	WeatherClear Weather = iota
	WeatherOvercast
	WeatherRain
	WeatherFog
	WeatherStorm
)

func (w Weather) String() string {
	switch w {
	case WeatherClear:
		return "clear"
	case WeatherOvercast:
		return "overcast"
	case WeatherRain:
		return "rain"
	case WeatherFog:
		return "fog"
	case WeatherStorm:
		return "storm"
	default:
		return "unknown"
	}
}

// TimeOfDay affects sight multipliers.
type TimeOfDay int

const (
	TimeDawn TimeOfDay = iota
	TimeDay
	TimeDusk
	TimeNight
)

func (t TimeOfDay) String() string {
	switch t {
	case TimeDawn:
		return "dawn"
	case TimeDay:
		return "day"
	case TimeDusk:
		return "dusk"
	case TimeNight:
		return "night"
	default:
		return "unknown"
	}
}

// Stance is the tracked target's posture, fed in by the world simulation.
type Stance int

const (
	StanceStanding Stance = iota
	StanceCrouching
	StanceProne
)

func (s Stance) String() string {
	switch s {
	case StanceStanding:
		return "standing"
	case StanceCrouching:
		return "crouching"
	case StanceProne:
		return "prone"
	default:
		return "unknown"
	}
}

// Terrain is the coarse terrain class around the engagement.
type Terrain int

const (
	TerrainOpen Terrain = iota
	TerrainUrban
	TerrainForest
	TerrainHills
)

func (t Terrain) String() string {
	switch t {
	case TerrainOpen:
		return "open"
	case TerrainUrban:
		return "urban"
	case TerrainForest:
		return "forest"
	case TerrainHills:
		return "hills"
	default:
		return "unknown"
	}
}

// WorldContext is the slice of external world state the stack reads each
// tick. It is always passed by value; the stack never holds a reference
// into the world simulation.
type WorldContext struct {
	Weather   Weather
	TimeOfDay TimeOfDay
	Lighting  float64 // 0 = pitch black, 1 = full light
	Terrain   Terrain

	PlayerPos    Vec2
	PlayerNoise  float64 // 0 = silent, 1 = nominal, >1 = loud
	PlayerStance Stance
}

// DefaultWorldContext returns a daylight, clear-weather context.
func DefaultWorldContext() WorldContext {
	return WorldContext{
		Weather:     WeatherClear,
		TimeOfDay:   TimeDay,
		Lighting:    1.0,
		Terrain:     TerrainOpen,
		PlayerNoise: 1.0,
	}
}

// weatherSightMul maps weather to a sight-range multiplier.
var weatherSightMul = map[Weather]float64{
	WeatherClear:    1.0,
	WeatherOvercast: 0.9,
	WeatherRain:     0.7,
	WeatherFog:      0.4,
	WeatherStorm:    0.5,
}

// weatherHearMul maps weather to a hearing-radius multiplier.
var weatherHearMul = map[Weather]float64{
	WeatherClear:    1.0,
	WeatherOvercast: 1.0,
	WeatherRain:     0.6,
	WeatherFog:      0.9,
	WeatherStorm:    0.4,
}

// timeOfDaySightMul maps time of day to a sight-range multiplier.
var timeOfDaySightMul = map[TimeOfDay]float64{
	TimeDawn:  0.8,
	TimeDay:   1.0,
	TimeDusk:  0.7,
	TimeNight: 0.45,
}

// SightMultipliers returns the weather and time-of-day sight multipliers
// for this context.
func (wc WorldContext) SightMultipliers() (weather, timeOfDay float64) {
	return weatherSightMul[wc.Weather], timeOfDaySightMul[wc.TimeOfDay]
}

// HearingMultiplier returns the weather hearing multiplier for this context.
func (wc WorldContext) HearingMultiplier() float64 {
	return weatherHearMul[wc.Weather]
}

// stanceDetectionMul maps the target's stance to a detection multiplier.
// A prone target is far harder to spot.
var stanceDetectionMul = map[Stance]float64{
	StanceStanding:  1.0,
	StanceCrouching: 0.65,
	StanceProne:     0.35,
}
