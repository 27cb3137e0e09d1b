// Package handler 按业务域划分的 HTTP 处理器，子包为 affiliate、payment 与 admin。
//
// 接口文档由 `swag init -g cmd/api-gateway/main.go` 生成到 docs 目录。
package handler
