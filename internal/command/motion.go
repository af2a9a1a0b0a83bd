package command

import (
	"strings"

	"github.com/taoyao-code/amr-console/internal/protocol/amr"
)

// Direction 点动方向
type Direction string

const (
	DirUp    Direction = "up"
	DirDown  Direction = "down"
	DirLeft  Direction = "left"
	DirRight Direction = "right"
	DirStop  Direction = "stop"
)

// 点动参数
const (
	JogLinearSpeed  = 0.5 // m/s
	JogAngularSpeed = 0.5 // rad/s
	JogDurationMs   = 500
)

// ParseDirection 解析方向（大小写不敏感）
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DirUp, DirDown, DirLeft, DirRight, DirStop:
		return d, nil
	}
	return "", invalid("unknown jog direction %q", s)
}

// JogBody 速度指令
type JogBody struct {
	Vx       float64 `json:"vx"`
	Vy       float64 `json:"vy"`
	W        float64 `json:"w"`
	Duration int     `json:"duration"`
}

// Jog 按方向构造点动命令；stop 为全零速度
func (b *Builder) Jog(d Direction) (Command, error) {
	body := JogBody{Duration: JogDurationMs}
	switch d {
	case DirUp:
		body.Vx = JogLinearSpeed
	case DirDown:
		body.Vx = -JogLinearSpeed
	case DirLeft:
		body.W = JogAngularSpeed
	case DirRight:
		body.W = -JogAngularSpeed
	case DirStop:
	default:
		return Command{}, invalid("unknown jog direction %q", d)
	}
	return b.build(amr.APIMotionJog, body)
}

// LiftAction 顶升动作
type LiftAction string

const (
	LiftUp   LiftAction = "up"
	LiftDown LiftAction = "down"
	LiftStop LiftAction = "stop"
)

// ParseLiftAction 解析顶升动作
func ParseLiftAction(s string) (LiftAction, error) {
	a := LiftAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case LiftUp, LiftDown, LiftStop:
		return a, nil
	}
	return "", invalid("unknown lift action %q", s)
}

// Lift 顶升命令，三种动作各自一个 apiId，均无正文
func (b *Builder) Lift(a LiftAction) (Command, error) {
	switch a {
	case LiftUp:
		return b.build(amr.APILiftUp, nil)
	case LiftDown:
		return b.build(amr.APILiftDown, nil)
	case LiftStop:
		return b.build(amr.APILiftStop, nil)
	}
	return Command{}, invalid("unknown lift action %q", a)
}
