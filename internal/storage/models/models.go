package models

import (
	"time"
)

// 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// Setting 映射 settings 表（键值设置，如当前 AMR 地址）
type Setting struct {
	Key       string    `gorm:"column:key;type:text;primaryKey" json:"key"`
	Value     string    `gorm:"column:value;type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }

// 命令执行结果
const (
	ResultOK     = "ok"
	ResultRemote = "remote_error" // 设备返回非零 ret_code
)

// CommandLog 映射 command_logs 表，每条发出的命令一行
type CommandLog struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string `gorm:"column:name;type:text;not null;index" json:"name"`
	APIID     int32  `gorm:"column:api_id;not null" json:"api_id"`
	Host      string `gorm:"column:host;type:text;not null" json:"host"`
	Port      int32  `gorm:"column:port;not null" json:"port"`
	Result    string `gorm:"column:result;type:text;not null" json:"result"` // ok | remote_error | 错误分类
	Error     string `gorm:"column:error;type:text" json:"error,omitempty"`
	// 设备返回的 ret_code，可空
	RetCode   *int32    `gorm:"column:ret_code" json:"ret_code,omitempty"`
	LatencyMs int64     `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (CommandLog) TableName() string { return "command_logs" }
