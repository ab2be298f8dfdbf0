// Package docs holds the swagger spec served at /swagger/.
package docs

import "github.com/swaggo/swag"

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
        "/tournaments/{tournamentID}/bracket": {
            "get": {
                "tags": ["brackets"],
                "summary": "Получить сетку турнира",
                "parameters": [{"type": "string", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["brackets"],
                "summary": "Построить сетку турнира",
                "parameters": [{"type": "string", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/tournaments/{tournamentID}/matches": {
            "get": {
                "tags": ["brackets"],
                "summary": "Список матчей турнира",
                "parameters": [
                    {"type": "string", "name": "tournamentID", "in": "path", "required": true},
                    {"type": "string", "name": "status", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/matches/{matchID}": {
            "get": {
                "tags": ["matches"],
                "summary": "Получить матч",
                "parameters": [{"type": "integer", "name": "matchID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/matches/{matchID}/start": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["matches"],
                "summary": "Начать матч",
                "parameters": [{"type": "integer", "name": "matchID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "423": {"description": "Locked"}}
            }
        },
        "/matches/{matchID}/result": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["matches"],
                "summary": "Сообщить результат матча",
                "parameters": [{"type": "integer", "name": "matchID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}, "423": {"description": "Locked"}}
            }
        },
        "/operator/tournaments/{tournamentID}/consistency": {
            "get": {
                "security": [{"OperatorKey": []}],
                "tags": ["operator"],
                "summary": "Проверка целостности сетки",
                "parameters": [{"type": "string", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/operator/tournaments/{tournamentID}/resume": {
            "post": {
                "security": [{"OperatorKey": []}],
                "tags": ["operator"],
                "summary": "Возобновить продвижение после остановки",
                "parameters": [{"type": "string", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "OperatorKey": {"type": "apiKey", "name": "X-Operator-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Tournament Bracket API",
	Description:      "Two-group double-elimination bracket engine.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
