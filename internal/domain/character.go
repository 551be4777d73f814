package domain

// Character 是从单个角色页面提取出的记录。
//
// JSON 字段名与下游脚本（Bangumi 角色创建助手）读取的键保持一致：
// name / avatar / description / nickName。
type Character struct {
	Name string `json:"name"`
	// Avatar 是本地保存的头像文件名；页面有头像但下载/保存失败时为空（省略）。
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description"`
	// NickNames 仅在页面存在前置昵称行时出现（不含占位词“他多数”）。
	NickNames []string `json:"nickName,omitempty"`
}
