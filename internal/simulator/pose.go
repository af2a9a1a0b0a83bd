package simulator

import "math"

// Telemetry 推送帧正文
type Telemetry struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Angle        float64 `json:"angle"`
	BatteryLevel float64 `json:"battery_level"`
}

const (
	poseHigh = 2.0
	poseLow  = -5.0
	poseStep = 0.1
)

// pose 在 (2,2) 与 (-5,-5) 之间按 0.1 步长往返
type pose struct {
	x, y float64
	dir  float64
}

func newPose() *pose { return &pose{x: poseHigh, y: poseHigh, dir: -1} }

// next 先移动一步，越界时掉头
func (p *pose) next() Telemetry {
	p.x += poseStep * p.dir
	p.y += poseStep * p.dir
	if p.dir < 0 && (p.x <= poseLow || p.y <= poseLow) {
		p.dir = 1
	} else if p.dir > 0 && (p.x >= poseHigh || p.y >= poseHigh) {
		p.dir = -1
	}
	return Telemetry{X: round3(p.x), Y: round3(p.y), Angle: 0, BatteryLevel: 1}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
