package simulate

import (
	"fmt"
	"time"
)

// Kind identifies a simulated interaction.
type Kind string

const (
	KindPowerOn      Kind = "power-on"
	KindNetworkCheck Kind = "network-check"
	KindDeviceScan   Kind = "device-scan"
	KindBind         Kind = "device-bind"
	KindFirmware     Kind = "firmware-update"
	KindAzimuth      Kind = "azimuth-check"
	KindTestShots    Kind = "test-shots"
	KindCalibration  Kind = "calibration"
)

// AdjustmentMessage is reported when the azimuth check fails.
const AdjustmentMessage = "The unit needs adjustment. Please ensure all values are in the green range."

// Shot is one recorded calibration test shot.
type Shot struct {
	ID          int     `json:"id"`
	ClubSpeed   int     `json:"clubSpeed"`
	BallSpeed   int     `json:"ballSpeed"`
	LaunchAngle float64 `json:"launchAngle"`
	SpinRate    int     `json:"spinRate"`
	Distance    int     `json:"distance"`
}

// Orientation is the mount reading taken during the azimuth check.
type Orientation struct {
	Pitch     float64
	Roll      float64
	Height    float64
	Alignment bool
}

// WithinTolerance reports whether the unit is level, at a supported height and aligned.
func (o Orientation) WithinTolerance() bool {
	return abs(o.Pitch) < 0.5 && abs(o.Roll) < 0.5 && o.Height >= 7 && o.Height <= 16 && o.Alignment
}

// DefaultMountHeight is the ceiling height (feet) assumed by the azimuth check.
const DefaultMountHeight = 9.5

var testShots = []Shot{
	{ID: 1, ClubSpeed: 93, BallSpeed: 138, LaunchAngle: 12.5, SpinRate: 2800, Distance: 235},
	{ID: 2, ClubSpeed: 95, BallSpeed: 142, LaunchAngle: 11.8, SpinRate: 2650, Distance: 243},
	{ID: 3, ClubSpeed: 94, BallSpeed: 140, LaunchAngle: 12.2, SpinRate: 2750, Distance: 240},
}

// TestShots returns the shots recorded by a KindTestShots run.
func TestShots() []Shot {
	out := make([]Shot, len(testShots))
	copy(out, testShots)
	return out
}

// stage is one delayed step of a profile.
type stage struct {
	delay    time.Duration
	progress float64
	detail   string
	shot     *Shot
	// resolve computes a dynamic outcome at the time the stage fires.
	resolve func(r Rand, u *Update)
}

type profile struct {
	completionKey string
	stages        []stage
}

func progressStages(n int, every time.Duration, detail string) []stage {
	out := make([]stage, n)
	for i := range out {
		out[i] = stage{
			delay:    every,
			progress: float64(i+1) / float64(n),
			detail:   fmt.Sprintf("%s %d%%", detail, (i+1)*100/n),
		}
	}
	return out
}

func buildProfiles() map[Kind]profile {
	shots := make([]stage, len(testShots))
	for i := range testShots {
		shot := testShots[i]
		shots[i] = stage{
			delay:    3 * time.Second,
			progress: float64(i+1) / float64(len(testShots)),
			detail:   fmt.Sprintf("Recorded shot %d of %d", i+1, len(testShots)),
			shot:     &shot,
		}
	}

	calibration := []stage{{
		delay:  time.Second,
		detail: "Checking hitting environment",
		resolve: func(r Rand, u *Update) {
			if r.Float64() > 0.7 {
				u.Warnings = append(u.Warnings, "Glare detected in hitting zone")
			}
			if r.Float64() > 0.7 {
				u.Warnings = append(u.Warnings, "Camera view partially obstructed")
			}
		},
	}}
	calibration = append(calibration, progressStages(10, 500*time.Millisecond, "Calibrating")...)

	return map[Kind]profile{
		KindPowerOn: {
			completionKey: "power-confirmed",
			stages:        []stage{{delay: 2 * time.Second, progress: 1, detail: "Power confirmed"}},
		},
		KindNetworkCheck: {
			completionKey: "network-connected",
			stages:        []stage{{delay: 2 * time.Second, progress: 1, detail: "Network connected"}},
		},
		KindDeviceScan: {
			completionKey: "device-found",
			stages: []stage{
				{delay: 1500 * time.Millisecond, progress: 0.5, detail: "Scanning for devices"},
				{delay: 1500 * time.Millisecond, progress: 1, detail: "Found CLM PRO"},
			},
		},
		KindBind: {
			completionKey: "device-bound",
			stages:        []stage{{delay: 1500 * time.Millisecond, progress: 1, detail: "Device bound to account"}},
		},
		KindFirmware: {
			completionKey: "firmware-updated",
			stages:        progressStages(10, 500*time.Millisecond, "Installing firmware"),
		},
		KindAzimuth: {
			completionKey: "azimuth-aligned",
			stages: []stage{{
				delay:    2 * time.Second,
				progress: 1,
				resolve: func(r Rand, u *Update) {
					o := Orientation{
						Pitch:     r.Float64()*2 - 1,
						Roll:      r.Float64()*2 - 1,
						Height:    DefaultMountHeight,
						Alignment: r.Float64() > 0.5,
					}
					u.Orientation = &o
					if o.WithinTolerance() {
						u.Detail = "Unit aligned"
						return
					}
					u.Failed = true
					u.Detail = AdjustmentMessage
				},
			}},
		},
		KindTestShots: {
			completionKey: "test-shots-recorded",
			stages:        shots,
		},
		KindCalibration: {
			completionKey: "calibration-complete",
			stages:        calibration,
		},
	}
}

var profiles = buildProfiles()

// CompletionKey returns the wizard completion key a successful run of kind sets.
func CompletionKey(k Kind) string {
	return profiles[k].completionKey
}

// Kinds lists all known simulation kinds.
func Kinds() []Kind {
	return []Kind{KindPowerOn, KindNetworkCheck, KindDeviceScan, KindBind, KindFirmware, KindAzimuth, KindTestShots, KindCalibration}
}

// Duration is the nominal unscaled run time of kind.
func Duration(k Kind) time.Duration {
	var d time.Duration
	for _, s := range profiles[k].stages {
		d += s.delay
	}
	return d
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
