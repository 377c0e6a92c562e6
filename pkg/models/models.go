package models

import "time"

// Release 描述上游一个发布系列的聚合信息。
type Release struct {
	Series       string // 主次版本系列，例如 3.12
	Latest       string // 该系列当前最新的补丁版本
	Status       string // bugfix / security / end-of-life
	SupportUntil string // 支持结束日期，上游未提供时为空
}

// HistoryEntry 表示一次已完成安装的持久化记录。
type HistoryEntry struct {
	Version     string    `json:"version"`
	Installer   string    `json:"installer"`
	Timestamp   time.Time `json:"timestamp"`
	InstallPath string    `json:"install_path,omitempty"`
}

// StrategyFailure 记录单个安装后端的失败原因。
type StrategyFailure struct {
	Strategy string
	Err      error
}

// InstallAttempt 描述一次安装请求的最终结果。
type InstallAttempt struct {
	Version  string
	Strategy string // 成功时为实际使用的后端名称
	Success  bool
	Failures []StrategyFailure
}
