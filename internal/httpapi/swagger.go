package httpapi

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
	"github.com/swaggo/swag"
)

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "{{.Title}}",
    "description": "{{escape .Description}}",
    "version": "{{.Version}}"
  },
  "basePath": "{{.BasePath}}",
  "paths": {
    "/upload": {
      "post": {
        "summary": "Validate and store the uploads of a multipart request",
        "consumes": ["multipart/form-data"],
        "produces": ["application/json"],
        "responses": {
          "201": {"description": "Uploads stored"},
          "400": {"description": "A required upload is missing"},
          "413": {"description": "Request body too large"},
          "415": {"description": "An upload has a type that is not accepted"},
          "500": {"description": "Uploads could not be stored"}
        }
      }
    },
    "/uploads": {
      "get": {
        "summary": "List the uploads stored by a request",
        "produces": ["application/json"],
        "parameters": [
          {"name": "id", "in": "query", "required": true, "type": "string", "description": "Request ID returned by POST /upload"}
        ],
        "responses": {
          "200": {"description": "Uploads of the request"},
          "404": {"description": "Unknown request"},
          "501": {"description": "Upload records are disabled"}
        }
      }
    }
  }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Title:            "Uploader API",
	Description:      "Validates multipart uploads and moves them into place.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// SwaggerHandler serves the API documentation below /swagger/.
func SwaggerHandler() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))
}
