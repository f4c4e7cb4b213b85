package openapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// Validator checks HTTP requests and responses against the service's OpenAPI
// document. The contract tests use it to keep docs/openapi.yaml and the gin
// handlers from drifting apart.
type Validator struct {
	doc    *openapi3.T
	router routers.Router
}

// NewValidator loads and validates an OpenAPI document from a file.
func NewValidator(specPath string) (*Validator, error) {
	doc, err := newLoader().LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document %s: %w", specPath, err)
	}
	return newValidator(doc)
}

// NewValidatorFromBytes loads and validates an OpenAPI document from memory.
func NewValidatorFromBytes(specBytes []byte) (*Validator, error) {
	doc, err := newLoader().LoadFromData(specBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	return newValidator(doc)
}

func newLoader() *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	return loader
}

func newValidator(doc *openapi3.T) (*Validator, error) {
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}

	return &Validator{doc: doc, router: router}, nil
}

func (v *Validator) findRoute(req *http.Request) (*routers.Route, map[string]string, error) {
	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		return nil, nil, fmt.Errorf("no operation matches %s %s: %w", req.Method, req.URL.Path, err)
	}
	return route, pathParams, nil
}

// ValidateRequest checks method, path, parameters and body of a request
// against the matching operation. All violations are collected, not just the
// first one.
func (v *Validator) ValidateRequest(req *http.Request) error {
	route, pathParams, err := v.findRoute(req)
	if err != nil {
		return err
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options:    &openapi3filter.Options{MultiError: true},
	}

	if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}
	return nil
}

// ValidateResponse checks a response's status, headers and body against the
// operation matched by the originating request. The response body is restored
// after reading so callers can still consume it.
func (v *Validator) ValidateResponse(req *http.Request, resp *http.Response) error {
	route, pathParams, err := v.findRoute(req)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	}

	if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
		return fmt.Errorf("response validation failed: %w", err)
	}
	return nil
}

// GetOperationID resolves the operationId of the operation a request routes to.
func (v *Validator) GetOperationID(req *http.Request) (string, error) {
	route, _, err := v.findRoute(req)
	if err != nil {
		return "", err
	}
	return route.Operation.OperationID, nil
}

// GetDocument exposes the parsed document for tests that assert on the
// contract itself.
func (v *Validator) GetDocument() *openapi3.T {
	return v.doc
}

// GetPaths lists every path the document declares.
func (v *Validator) GetPaths() []string {
	if v.doc.Paths == nil {
		return nil
	}

	var paths []string
	for path := range v.doc.Paths.Map() {
		paths = append(paths, path)
	}
	return paths
}
