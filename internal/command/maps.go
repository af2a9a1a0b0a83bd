package command

import (
	"encoding/json"
	"strings"

	"github.com/taoyao-code/amr-console/internal/protocol/amr"
)

// LaserScanBody 激光数据请求
type LaserScanBody struct {
	ReturnBeams3D bool `json:"return_beams3D"`
}

// LaserScan 请求激光扫描数据
func (b *Builder) LaserScan() (Command, error) {
	return b.build(amr.APILaserScan, LaserScanBody{ReturnBeams3D: true})
}

// MapList 查询地图列表
func (b *Builder) MapList() (Command, error) {
	return b.build(amr.APIMapList, nil)
}

// MapDownloadBody 地图下载请求
type MapDownloadBody struct {
	MapName string `json:"map_name"`
}

// MapDownload 下载指定地图
func (b *Builder) MapDownload(name string) (Command, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Command{}, invalid("map name is empty")
	}
	return b.build(amr.APIMapDownload, MapDownloadBody{MapName: name})
}

// MapUpload 上传地图文档，正文即文档本身
func (b *Builder) MapUpload(doc json.RawMessage) (Command, error) {
	if len(doc) == 0 {
		return Command{}, invalid("map document is empty")
	}
	if !json.Valid(doc) {
		return Command{}, invalid("map document is not valid JSON")
	}
	return b.build(amr.APIMapUpload, doc)
}

// SlamOptions SLAM 启动参数
type SlamOptions struct {
	SlamType     int  `json:"slam_type"`
	RealTime     bool `json:"real_time"`
	ScreenWidth  int  `json:"screen_width"`
	ScreenHeight int  `json:"screen_height"`
}

// DefaultSlamOptions 2D 实时扫描
func DefaultSlamOptions() SlamOptions {
	return SlamOptions{SlamType: 2, RealTime: true, ScreenWidth: 800, ScreenHeight: 600}
}

// SlamStart 启动建图
func (b *Builder) SlamStart(opts SlamOptions) (Command, error) {
	if opts.ScreenWidth < 0 || opts.ScreenHeight < 0 {
		return Command{}, invalid("negative screen size %dx%d", opts.ScreenWidth, opts.ScreenHeight)
	}
	return b.build(amr.APISlamStart, opts)
}

// SlamStop 结束建图，无正文
func (b *Builder) SlamStop() (Command, error) {
	return b.build(amr.APISlamStop, nil)
}
