// Package command 构造发往 AMR 的命令：接口目录 + JSON 正文，不做任何 I/O。
package command

import (
	"errors"
	"fmt"

	"github.com/taoyao-code/amr-console/internal/protocol/amr"
)

// ErrInvalidArgument 命令参数不合法
var ErrInvalidArgument = errors.New("invalid command argument")

// SourceSelfPosition 以当前位置为起点导航
const SourceSelfPosition = "SELF_POSITION"

// Command 一条待发送的命令
type Command struct {
	Name    string
	APIID   uint16
	Port    int
	Profile amr.Profile
	Body    any // nil 表示空正文
}

// Encode 编码为完整帧
func (c Command) Encode(seq uint32) ([]byte, error) {
	return amr.Encode(c.Profile, c.APIID, seq, c.Body)
}

// Builder 基于接口目录构造命令
type Builder struct {
	cat *amr.Catalog
}

// NewBuilder 创建构造器；cat 为 nil 时使用内置目录
func NewBuilder(cat *amr.Catalog) *Builder {
	if cat == nil {
		cat = amr.DefaultCatalog()
	}
	return &Builder{cat: cat}
}

// Catalog 返回构造器使用的目录
func (b *Builder) Catalog() *amr.Catalog { return b.cat }

func (b *Builder) build(name string, body any) (Command, error) {
	ep, err := b.cat.Lookup(name)
	if err != nil {
		return Command{}, err
	}
	p, err := ep.HeaderProfile()
	if err != nil {
		return Command{}, fmt.Errorf("%s: %w", name, err)
	}
	return Command{Name: name, APIID: ep.APIID, Port: ep.Port, Profile: p, Body: body}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
