// Package validator checks JSON request bodies against the embedded OpenAPI document.
package validator

import (
	_ "embed"
	"fmt"

	"talking-avatar/backend/pkg/errors"
	"talking-avatar/backend/pkg/logger"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

//go:embed openapi.yaml
var schema []byte

// OpenAPIValidator validates requests against the OpenAPI document
type OpenAPIValidator struct {
	doc    *openapi3.T
	router routers.Router
}

// NewOpenAPIValidator loads and validates the embedded document
func NewOpenAPIValidator() (*OpenAPIValidator, error) {
	return newValidator(schema)
}

func newValidator(data []byte) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	return &OpenAPIValidator{doc: doc, router: router}, nil
}

// Schema returns the raw document for serving to clients
func Schema() []byte {
	return schema
}

// Middleware rejects requests that do not match the document with a 400.
// Routes the document does not describe pass through untouched.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, pathParams, err := v.router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         false,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			logger.FromContext(c).Debug("request failed schema validation",
				"path", c.Request.URL.Path,
				"error", err.Error(),
			)
			c.Error(errors.NewValidationError("Invalid request").WithDetails(err.Error()))
			c.Abort()
			return
		}

		c.Next()
	}
}
