// Package api exposes the moderator over HTTP with go-restful and serves its
// OpenAPI description.
package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"github.com/pocketmarket/moderation/internal/service"
	"github.com/rs/zerolog"
)

// APIDocsPath serves the generated OpenAPI document.
const APIDocsPath = "/apidocs.json"

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	ws.
		Route(ws.GET("/health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}).
			Returns(503, "Degraded", HealthResponse{}))

	ws.
		Route(ws.POST("/moderation/listings").
			To(handler.CheckListing).
			Doc("Check a listing title and description before publishing").
			Metadata(restfulspec.KeyOpenAPITags, []string{"moderation"}).
			Reads(service.ListingCheckRequest{}).
			Writes(service.CheckResult{}).
			Returns(200, "OK", service.CheckResult{}).
			Returns(400, "Bad Request", ErrorResponse{}).
			Returns(403, "Posting cooldown active", ErrorResponse{}).
			Returns(429, "Too Many Requests", ErrorResponse{}))

	ws.
		Route(ws.POST("/moderation/messages").
			To(handler.CheckMessage).
			Doc("Check a chat message before delivery").
			Metadata(restfulspec.KeyOpenAPITags, []string{"moderation"}).
			Reads(service.MessageCheckRequest{}).
			Writes(service.CheckResult{}).
			Returns(200, "OK", service.CheckResult{}).
			Returns(400, "Bad Request", ErrorResponse{}).
			Returns(403, "Posting cooldown active", ErrorResponse{}).
			Returns(429, "Too Many Requests", ErrorResponse{}))

	ws.
		Route(ws.GET("/moderation/users/{user_id}").
			To(handler.UserStanding).
			Doc("Strikes, cooldown and recent flags for a user").
			Metadata(restfulspec.KeyOpenAPITags, []string{"users"}).
			Param(ws.PathParameter("user_id", "User ID").DataType("string")).
			Writes(UserStanding{}).
			Returns(200, "OK", UserStanding{}).
			Returns(500, "Internal Server Error", ErrorResponse{}))

	ws.
		Route(ws.DELETE("/moderation/users/{user_id}/strikes").
			To(handler.ClearStrikes).
			Doc("Clear a user's strikes and cooldown").
			Metadata(restfulspec.KeyOpenAPITags, []string{"users"}).
			Param(ws.PathParameter("user_id", "User ID").DataType("string")).
			Returns(204, "No Content", nil).
			Returns(503, "Service Unavailable", ErrorResponse{}))

	container.Add(ws)
}

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "Pocket Market Moderation API",
			Description: "Content checks for listings and buyer/seller messages",
			Version:     Version,
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: "health", Description: "Health checks"}},
		{TagProps: spec.TagProps{Name: "moderation", Description: "Content checks"}},
		{TagProps: spec.TagProps{Name: "users", Description: "Strike history"}},
	}
}

// NewContainer builds a container with logging and recovery filters, the
// moderation routes and the OpenAPI document.
func NewContainer(handler *Handler, logger zerolog.Logger) *restful.Container {
	container := restful.NewContainer()
	container.Filter(RequestLogger(logger))
	container.Filter(RecoverPanic(logger))

	RegisterRoutes(container, handler)

	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices:                   container.RegisteredWebServices(),
		APIPath:                       APIDocsPath,
		PostBuildSwaggerObjectHandler: enrichSwaggerObject,
	}))
	return container
}
