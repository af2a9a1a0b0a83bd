package amr

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// 目录中的接口名称
const (
	APIMoveToStation = "move_to_station"
	APIMotionJog     = "motion_jog"
	APILiftUp        = "lift_up"
	APILiftDown      = "lift_down"
	APILiftStop      = "lift_stop"
	APIRelocate      = "relocate"
	APILaserScan     = "laser_scan"
	APIMapList       = "map_list"
	APIMapDownload   = "map_download"
	APIMapUpload     = "map_upload"
	APISlamStart     = "slam_start"
	APISlamStop      = "slam_stop"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Endpoint 一个远端接口：apiId + 端口 + 帧头画像
type Endpoint struct {
	Name    string `yaml:"-"`
	APIID   uint16 `yaml:"id"`
	Port    int    `yaml:"port"`
	Profile string `yaml:"profile"`
}

// HeaderProfile 返回端点使用的帧头画像
func (e Endpoint) HeaderProfile() (Profile, error) {
	return ProfileByName(e.Profile)
}

// PushEndpoint 推送通道端点（无 apiId，对端主动推送）
type PushEndpoint struct {
	Port    int    `yaml:"port"`
	Profile string `yaml:"profile"`
}

// HeaderProfile 返回推送通道的帧头画像
func (e PushEndpoint) HeaderProfile() (Profile, error) {
	return ProfileByName(e.Profile)
}

// Catalog 接口目录
type Catalog struct {
	Push PushEndpoint        `yaml:"push"`
	APIs map[string]Endpoint `yaml:"apis"`
}

// DefaultCatalog 返回内置目录的副本
func DefaultCatalog() *Catalog {
	c, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded amr catalog: %v", err))
	}
	return c
}

// LoadCatalog 在内置目录之上叠加文件中的条目；path 为空时返回内置目录
func LoadCatalog(path string) (*Catalog, error) {
	base := DefaultCatalog()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	override, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if override.Push.Port != 0 {
		base.Push.Port = override.Push.Port
	}
	if override.Push.Profile != "" {
		base.Push.Profile = override.Push.Profile
	}
	for name, ep := range override.APIs {
		base.APIs[name] = ep
	}
	return base, base.Validate()
}

func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.APIs == nil {
		c.APIs = make(map[string]Endpoint)
	}
	for name, ep := range c.APIs {
		ep.Name = name
		c.APIs[name] = ep
	}
	return &c, nil
}

// Validate 校验端口与画像
func (c *Catalog) Validate() error {
	if c.Push.Port <= 0 || c.Push.Port > 65535 {
		return fmt.Errorf("push port out of range: %d", c.Push.Port)
	}
	if _, err := c.Push.HeaderProfile(); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	for name, ep := range c.APIs {
		if ep.Port <= 0 || ep.Port > 65535 {
			return fmt.Errorf("%s: port out of range: %d", name, ep.Port)
		}
		if _, err := ep.HeaderProfile(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Lookup 按名称查找端点
func (c *Catalog) Lookup(name string) (Endpoint, error) {
	ep, ok := c.APIs[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("api %q not in catalog", name)
	}
	return ep, nil
}

// Names 返回排序后的接口名称
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.APIs))
	for n := range c.APIs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
