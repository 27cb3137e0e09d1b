// Package docs 由 swag 生成的接口文档
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/webhooks/mercadopago": {
            "post": {
                "tags": ["支付"],
                "summary": "Mercado Pago 支付通知",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/payments/verify/{id}": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["支付"],
                "summary": "查询支付结果",
                "parameters": [{"type": "string", "description": "支付ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/affiliate/register": {
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["推广员"],
                "summary": "注册推广员",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/affiliate/dashboard": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["推广员"],
                "summary": "推广员看板",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/affiliate/network": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["推广员"],
                "summary": "团队树",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/affiliate/balance": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["推广员"],
                "summary": "可提现余额",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/affiliate/withdrawals": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["推广员"],
                "summary": "提现记录",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["推广员"],
                "summary": "申请提现",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/affiliate/checkout": {
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["推广员"],
                "summary": "创建订阅支付",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/admin/commission-settings": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["管理-佣金配置"],
                "summary": "获取佣金配置",
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "security": [{"Bearer": []}],
                "tags": ["管理-佣金配置"],
                "summary": "更新佣金配置",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/admin/commissions/simulate": {
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["管理-佣金配置"],
                "summary": "模拟销售分佣",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/admin/withdrawals/{id}/resolve": {
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["管理-提现"],
                "summary": "处理提现申请",
                "parameters": [{"type": "integer", "description": "提现申请ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/v1/admin/reports/dashboard": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["管理-报表"],
                "summary": "管理端总览",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "securityDefinitions": {
        "Bearer": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Affiliate Backend API",
	Description:      "多级分销推广后台：推广员注册、订阅支付、佣金分配与提现管理",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
