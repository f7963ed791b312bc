package httputil

import "github.com/gin-gonic/gin"

// RouteGroup is a set of read-only endpoints served under one prefix of the
// versioned API.
type RouteGroup interface {
	Prefix() string
	Register(r gin.IRoutes)
}

// Mount registers every group under its own prefix of parent.
func Mount(parent *gin.RouterGroup, groups ...RouteGroup) {
	for _, g := range groups {
		g.Register(parent.Group(g.Prefix()))
	}
}
