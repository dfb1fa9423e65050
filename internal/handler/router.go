package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/simurgh/internal/middleware"
)

type RouterDeps struct {
	Verifications *VerificationHandler
	Employees     *EmployeeHandler
	Admin         *AdminHandler
	Metrics       http.Handler
	JWTSecret     []byte
	RateLimit     time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	verify := api.Group("/verify")
	verify.Use(middleware.RateLimit(deps.RateLimit))
	verify.POST("/requests", deps.Verifications.Issue)
	verify.POST("/check", deps.Verifications.Check)

	api.POST("/admin/login", middleware.RateLimit(deps.RateLimit), deps.Admin.Login)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(deps.JWTSecret))
	admin.POST("/employees", deps.Employees.Create)
	admin.GET("/employees", deps.Employees.List)
	admin.GET("/employees/:username", deps.Employees.Get)
	admin.PUT("/employees/:username", deps.Employees.Update)
	admin.DELETE("/employees/:username", deps.Employees.Delete)

	if deps.Metrics != nil {
		api.GET("/metrics", gin.WrapH(deps.Metrics))
	}
}
