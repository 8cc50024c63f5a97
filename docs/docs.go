// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with `swag init -g cmd/main.go` after changing handler annotations.
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
        "/health": {"get": {"tags": ["system"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}},
        "/auth/sign-up": {"post": {"tags": ["auth"], "summary": "Sign up", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/auth/sign-in": {"post": {"tags": ["auth"], "summary": "Sign in", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/auth/me": {"get": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Current user", "responses": {"200": {"description": "OK"}}}},
        "/api/iot": {"post": {"tags": ["iot"], "summary": "Ingest ESP32 telemetry", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "422": {"description": "Unprocessable Entity"}}}},
        "/api/iot/old-format": {"post": {"tags": ["iot"], "summary": "Ingest legacy telemetry", "responses": {"200": {"description": "OK"}}}},
        "/api/iot/legacy": {"post": {"tags": ["iot"], "summary": "Ingest legacy telemetry", "responses": {"200": {"description": "OK"}}}},
        "/api/iot/bulk-data": {"post": {"tags": ["iot"], "summary": "Ingest a batch of telemetry payloads", "responses": {"200": {"description": "OK"}}}},
        "/api/iot/device-status": {"post": {"tags": ["iot"], "summary": "Report device status", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/api/iot/device-commands/{deviceId}": {"get": {"tags": ["iot"], "summary": "Poll desired device state", "parameters": [{"type": "string", "name": "deviceId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/api/v1/devices": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["devices"], "summary": "List devices", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["devices"], "summary": "Register device", "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/api/v1/devices/{deviceId}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["devices"], "summary": "Get device", "parameters": [{"type": "string", "name": "deviceId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["devices"], "summary": "Remove device", "parameters": [{"type": "string", "name": "deviceId", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}}}
        },
        "/api/v1/devices/setup-iot-devices": {"post": {"security": [{"BearerAuth": []}], "tags": ["devices"], "summary": "Create the standard ESP32 actuators", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/devices/{deviceId}/control": {"post": {"security": [{"BearerAuth": []}], "tags": ["devices"], "summary": "Control device", "parameters": [{"type": "string", "name": "deviceId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}}},
        "/api/v1/devices/{deviceId}/automation": {"put": {"security": [{"BearerAuth": []}], "tags": ["devices"], "summary": "Update automation rules", "parameters": [{"type": "string", "name": "deviceId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/control-history": {"get": {"security": [{"BearerAuth": []}], "tags": ["devices"], "summary": "Device control history", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/api/v1/alerts": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "List alerts", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "Raise alert manually", "responses": {"201": {"description": "Created"}}}
        },
        "/api/v1/alerts/active": {"get": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "Unresolved alerts", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/alerts/stats": {"get": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "Alert statistics", "responses": {"200": {"description": "OK"}}}},
        "/api/v1/alerts/{alertId}/resolve": {"put": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "Resolve alert", "parameters": [{"type": "string", "name": "alertId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}},
        "/api/v1/alerts/{alertId}": {"delete": {"security": [{"BearerAuth": []}], "tags": ["alerts"], "summary": "Delete alert", "parameters": [{"type": "string", "name": "alertId", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}},
        "/api/v1/settings/{greenhouseId}": {"get": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Get alert thresholds", "parameters": [{"type": "string", "name": "greenhouseId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/settings/{greenhouseId}/thresholds": {"put": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Save alert thresholds", "parameters": [{"type": "string", "name": "greenhouseId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}},
        "/api/v1/sensors/latest/{greenhouseId}": {"get": {"security": [{"BearerAuth": []}], "tags": ["sensors"], "summary": "Latest readings", "parameters": [{"type": "string", "name": "greenhouseId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/api/v1/sensors/historical/{greenhouseId}": {"get": {"security": [{"BearerAuth": []}], "tags": ["sensors"], "summary": "Sensor history", "parameters": [{"type": "string", "name": "greenhouseId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/ws": {"get": {"tags": ["realtime"], "summary": "Realtime socket", "responses": {"101": {"description": "Switching Protocols"}, "401": {"description": "Unauthorized"}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {
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
	Title:            "Greenhouse Control API",
	Description:      "Sensor ingest, device control and realtime greenhouse rooms.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
