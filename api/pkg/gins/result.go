// Package gins 定义 api 的响应结构
package gins

// ResultObject 是所有接口统一的响应结构
type ResultObject struct {
	Code    int         `json:"code"`    // 1 成功, 0 失败
	Message string      `json:"message"` // 状态说明
	Data    interface{} `json:"data"`    // 响应数据或错误信息
}
