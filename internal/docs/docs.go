// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/api/main.go -o internal/docs
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
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register a new user", "responses": {"201": {"description": "User registered and tokens generated"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Login user", "responses": {"200": {"description": "User authenticated and tokens generated"}}}},
        "/auth/refresh": {"post": {"tags": ["auth"], "summary": "Refresh tokens", "responses": {"200": {"description": "New tokens"}}}},
        "/auth/logout": {"post": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Logout", "responses": {"204": {"description": "Logged out"}}}},
        "/profile": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["user"], "summary": "Get user profile", "responses": {"200": {"description": "User profile"}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["user"], "summary": "Update user profile", "responses": {"200": {"description": "Updated profile"}}}
        },
        "/profile/avatar": {"post": {"security": [{"BearerAuth": []}], "tags": ["user"], "summary": "Upload avatar", "responses": {"200": {"description": "Updated profile"}}}},
        "/books": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["books"], "summary": "List budget books", "responses": {"200": {"description": "Books"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["books"], "summary": "Create a budget book", "responses": {"201": {"description": "Book created"}}}
        },
        "/books/stream": {"get": {"security": [{"BearerAuth": []}], "tags": ["streams"], "summary": "Live book list", "produces": ["text/event-stream"], "responses": {"200": {"description": "Book list snapshots"}}}},
        "/books/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["books"], "summary": "Get a budget book", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "Book"}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["books"], "summary": "Update a budget book", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "Updated book"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["books"], "summary": "Delete a budget book", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "Deleted"}}}
        },
        "/books/{id}/categories": {"post": {"security": [{"BearerAuth": []}], "tags": ["categories"], "summary": "Add a category", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Updated book"}}}},
        "/books/{id}/categories/{categoryId}": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["categories"], "summary": "Update a category", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "categoryId", "in": "path", "required": true}], "responses": {"200": {"description": "Updated book"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["categories"], "summary": "Remove a category", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "categoryId", "in": "path", "required": true}, {"type": "string", "name": "type", "in": "query", "required": true}], "responses": {"200": {"description": "Updated book"}}}
        },
        "/books/{id}/entries": {"get": {"security": [{"BearerAuth": []}], "tags": ["entries"], "summary": "List entries of a book", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "integer", "name": "page", "in": "query"}, {"type": "integer", "name": "page_size", "in": "query"}], "responses": {"200": {"description": "Paginated entries"}}}},
        "/books/{id}/entries/stream": {"get": {"security": [{"BearerAuth": []}], "tags": ["streams"], "summary": "Live entries of a book", "produces": ["text/event-stream"], "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "Entry snapshots"}}}},
        "/books/{id}/report": {"get": {"security": [{"BearerAuth": []}], "tags": ["books"], "summary": "Book report", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "filter", "in": "query"}, {"type": "string", "name": "from", "in": "query"}, {"type": "string", "name": "to", "in": "query"}, {"type": "string", "name": "search", "in": "query"}, {"type": "string", "name": "view", "in": "query"}], "responses": {"200": {"description": "Report"}}}},
        "/entries": {"post": {"security": [{"BearerAuth": []}], "tags": ["entries"], "summary": "Add an entry", "responses": {"201": {"description": "Entry recorded"}}}},
        "/entries/{id}": {"delete": {"security": [{"BearerAuth": []}], "tags": ["entries"], "summary": "Delete an entry", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "Deleted"}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "PocketLedger API",
	Description:      "Monthly budget books with running totals and live updates.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
