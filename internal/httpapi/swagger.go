//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

const swaggerTemplate = `{
  "swagger": "2.0",
  "info": {"title": "{{.Title}}", "description": "{{escape .Description}}", "version": "{{.Version}}"},
  "basePath": "{{.BasePath}}",
  "paths": {
    "/v1/messages": {"post": {"summary": "Send one side panel message", "consumes": ["application/json"], "produces": ["application/json"],
      "responses": {"200": {"description": "synchronous reply"}, "202": {"description": "accepted; the result is broadcast"}, "400": {"description": "bad request"}}}},
    "/v1/events": {"get": {"summary": "NDJSON stream of broadcasts", "produces": ["application/x-ndjson"],
      "parameters": [{"name": "subscriber", "in": "query", "type": "string"}],
      "responses": {"200": {"description": "stream"}, "429": {"description": "too many streams"}}}},
    "/v1/tabs/events": {"post": {"summary": "Report a browser tab signal", "responses": {"204": {"description": "applied"}}}},
    "/v1/agents/{tabID}/commands": {"get": {"summary": "Long-poll agent commands",
      "parameters": [{"name": "tabID", "in": "path", "required": true, "type": "integer"}, {"name": "wait", "in": "query", "type": "string"}],
      "responses": {"200": {"description": "commands"}}}},
    "/v1/agents/{tabID}/responses": {"post": {"summary": "Deliver an agent response",
      "parameters": [{"name": "tabID", "in": "path", "required": true, "type": "integer"}],
      "responses": {"200": {"description": "ack"}}}},
    "/v1/host/commands": {"get": {"summary": "Long-poll tab host commands", "responses": {"200": {"description": "commands"}}}},
    "/v1/status": {"get": {"summary": "Daemon status", "responses": {"200": {"description": "status"}}}}
  }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Title:            "sitecnd API",
	Description:      "Local daemon that themes web sites with an on-device model.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  swaggerTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// SwaggerEnabled reports whether the daemon was built with API docs.
const SwaggerEnabled = true

// MountSwagger serves the API docs under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
