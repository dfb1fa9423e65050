package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/simurgh/internal/pkg/response"
	"github.com/xxxsen/simurgh/internal/service"
)

type EmployeeHandler struct {
	employees *service.EmployeeService
}

func NewEmployeeHandler(employees *service.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{employees: employees}
}

func (h *EmployeeHandler) Create(c *gin.Context) {
	var req service.EmployeeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	employee, err := h.employees.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, employee)
}

func (h *EmployeeHandler) List(c *gin.Context) {
	items, err := h.employees.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *EmployeeHandler) Get(c *gin.Context) {
	employee, err := h.employees.Get(c.Request.Context(), c.Param("username"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, employee)
}

func (h *EmployeeHandler) Update(c *gin.Context) {
	var req service.EmployeeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	employee, err := h.employees.Update(c.Request.Context(), c.Param("username"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, employee)
}

func (h *EmployeeHandler) Delete(c *gin.Context) {
	if err := h.employees.Delete(c.Request.Context(), c.Param("username")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
