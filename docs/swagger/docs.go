// Package swagger holds the OpenAPI document served at /swagger. Regenerate with swag init.
package swagger

import (
	"github.com/swaggo/swag"
)

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/api/auth/signup": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Envelope"}},
                    "409": {"description": "Email or username already in use", "schema": {"$ref": "#/definitions/response.Envelope"}},
                    "422": {"description": "Schema validation error or weak password", "schema": {"$ref": "#/definitions/response.Envelope"}}
                }
            }
        },
        "/api/auth/signin": {
            "post": {
                "tags": ["auth"],
                "summary": "Sign in",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Envelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/response.Envelope"}}
                }
            }
        },
        "/api/tasks": {
            "get": {
                "tags": ["tasks"],
                "summary": "List tasks",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Envelope"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Create task",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Envelope"}},
                    "403": {"description": "User is not authorized", "schema": {"$ref": "#/definitions/response.Envelope"}},
                    "422": {"description": "Schema validation error", "schema": {"$ref": "#/definitions/response.Envelope"}}
                }
            }
        },
        "/api/uploads": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "tags": ["uploads"],
                "summary": "Upload a file",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Envelope"}}}
            }
        }
    },
    "definitions": {
        "response.Envelope": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "message": {"type": "string"},
                "data": {},
                "code": {"type": "integer"},
                "description": {"type": "string"},
                "error": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "waos API",
	Description:      "Task and account API with schema validated bodies and role based access.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
