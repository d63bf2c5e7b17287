package openapi

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

type RouteBuilder struct {
	openapi   *OpenAPI
	method    string
	path      string
	operation *openapi3.Operation
}

func (rb *RouteBuilder) Summary(summary string) *RouteBuilder {
	rb.operation.Summary = summary
	return rb
}

func (rb *RouteBuilder) Description(description string) *RouteBuilder {
	rb.operation.Description = description
	return rb
}

func (rb *RouteBuilder) OperationID(id string) *RouteBuilder {
	rb.operation.OperationID = id
	return rb
}

func (rb *RouteBuilder) Tags(tags ...string) *RouteBuilder {
	rb.operation.Tags = append(rb.operation.Tags, tags...)
	return rb
}

func (rb *RouteBuilder) HeaderParam(name, description string, required bool) *RouteBuilder {
	return rb.param("header", name, description, required)
}

func (rb *RouteBuilder) CookieParam(name, description string, required bool) *RouteBuilder {
	return rb.param("cookie", name, description, required)
}

func (rb *RouteBuilder) param(in, name, description string, required bool) *RouteBuilder {
	rb.operation.Parameters = append(rb.operation.Parameters, &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          in,
			Description: description,
			Required:    required,
			Schema:      openapi3.NewStringSchema().NewRef(),
		},
	})
	return rb
}

func (rb *RouteBuilder) Body(example any, description string) *RouteBuilder {
	rb.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithJSONSchemaRef(rb.openapi.schemaFor(example)),
	}
	return rb
}

// Response documents a status. A nil example documents a response without a body.
func (rb *RouteBuilder) Response(status int, example any, description string) *RouteBuilder {
	resp := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		resp.WithJSONSchemaRef(rb.openapi.schemaFor(example))
	}
	rb.operation.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: resp})
	return rb
}

// ResponseHeader documents a header on an already documented status.
func (rb *RouteBuilder) ResponseHeader(status int, name, description string) *RouteBuilder {
	ref := rb.operation.Responses.Value(strconv.Itoa(status))
	if ref == nil || ref.Value == nil {
		return rb
	}
	if ref.Value.Headers == nil {
		ref.Value.Headers = make(openapi3.Headers)
	}
	ref.Value.Headers[name] = &openapi3.HeaderRef{
		Value: &openapi3.Header{
			Parameter: openapi3.Parameter{
				Description: description,
				Schema:      openapi3.NewStringSchema().NewRef(),
			},
		},
	}
	return rb
}

func (rb *RouteBuilder) Security(schemes ...string) *RouteBuilder {
	if rb.operation.Security == nil {
		rb.operation.Security = openapi3.NewSecurityRequirements()
	}
	for _, scheme := range schemes {
		rb.operation.Security.With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	}
	return rb
}

// NoSecurity marks the operation public.
func (rb *RouteBuilder) NoSecurity() *RouteBuilder {
	rb.operation.Security = openapi3.NewSecurityRequirements()
	return rb
}

func (rb *RouteBuilder) Build() {
	rb.openapi.addOperation(rb.method, rb.path, rb.operation)
}
