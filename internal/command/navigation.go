package command

import (
	"strings"

	"github.com/taoyao-code/amr-console/internal/protocol/amr"
)

// MoveToStationBody 导航到站点
type MoveToStationBody struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
}

// MoveToStation 从当前位置导航到站点
func (b *Builder) MoveToStation(stationID string) (Command, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return Command{}, invalid("station id is empty")
	}
	return b.build(amr.APIMoveToStation, MoveToStationBody{ID: stationID, SourceID: SourceSelfPosition})
}

// RelocateBody 手动重定位坐标
type RelocateBody struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// RelocateManual 按给定坐标重定位
func (b *Builder) RelocateManual(x, y, angle float64) (Command, error) {
	return b.build(amr.APIRelocate, RelocateBody{X: x, Y: y, Angle: angle})
}

// RelocateAuto 自动重定位，与手动共用 apiId，正文为空
func (b *Builder) RelocateAuto() (Command, error) {
	return b.build(amr.APIRelocate, nil)
}
