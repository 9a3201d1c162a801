package validator

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates incoming requests against the API schema
type OpenAPIValidator struct {
	doc        *openapi3.T
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// NewOpenAPIValidator creates a new OpenAPI validator
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	doc, err := loadOpenAPISchema(schemaPath)
	if err != nil {
		return nil, err
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	return &OpenAPIValidator{
		doc:        doc,
		router:     router,
		schemaPath: schemaPath,
	}, nil
}

func loadOpenAPISchema(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", path, err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	return doc, nil
}

// ReloadSchema reloads the OpenAPI schema from disk
func (v *OpenAPIValidator) ReloadSchema() error {
	doc, err := loadOpenAPISchema(v.schemaPath)
	if err != nil {
		return err
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.doc = doc
	v.router = router
	return nil
}

// Middleware returns a Gin middleware that rejects requests the schema does
// not allow. Routes absent from the schema pass through untouched.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := os.Stat(v.schemaPath); os.IsNotExist(err) {
			c.Next()
			return
		}

		route, pathParams, err := v.router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		requestValidationInput := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}

		v.mutex.RLock()
		err = openapi3filter.ValidateRequest(c.Request.Context(), requestValidationInput)
		v.mutex.RUnlock()

		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid request: %v", err),
			})
			return
		}

		c.Next()
	}
}
