package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/courier/pkg/api"
)

var ErrPlanIDMismatch = errors.New(
	"plan ID in URL does not match plan ID in body",
)

func (s *Server) listPlans(c *gin.Context) {
	plans := s.engine.ListPlans()
	c.JSON(http.StatusOK, api.PlansListResponse{
		Plans: plans,
		Count: len(plans),
	})
}

func (s *Server) createPlan(c *gin.Context) {
	var plan api.Plan
	if err := c.ShouldBindJSON(&plan); err != nil {
		writeBadRequest(c, err)
		return
	}

	created, err := s.engine.CreatePlan(c.Request.Context(), &plan)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, api.PlanSavedResponse{
		Plan:       created,
		Validation: s.engine.ValidatePlan(created),
	})
}

func (s *Server) validatePlan(c *gin.Context) {
	var plan api.Plan
	if err := c.ShouldBindJSON(&plan); err != nil {
		writeBadRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, s.engine.ValidatePlan(&plan))
}

func (s *Server) getPlan(c *gin.Context) {
	plan, err := s.engine.GetPlan(api.PlanID(c.Param("planID")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) updatePlan(c *gin.Context) {
	planID := api.PlanID(c.Param("planID"))

	var plan api.Plan
	if err := c.ShouldBindJSON(&plan); err != nil {
		writeBadRequest(c, err)
		return
	}

	if plan.ID != "" && plan.ID != planID {
		writeError(c, fmt.Errorf("%w: %s", ErrPlanIDMismatch, plan.ID))
		return
	}

	updated, err := s.engine.UpdatePlan(c.Request.Context(), planID, &plan)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.PlanSavedResponse{
		Plan:       updated,
		Validation: s.engine.ValidatePlan(updated),
	})
}

func (s *Server) deletePlan(c *gin.Context) {
	planID := api.PlanID(c.Param("planID"))
	if err := s.engine.DeletePlan(c.Request.Context(), planID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{
		Message: "Plan deleted",
	})
}

func (s *Server) executePlan(c *gin.Context) {
	planID := api.PlanID(c.Param("planID"))

	var req api.ExecuteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBadRequest(c, err)
			return
		}
	}

	ex, err := s.engine.ExecutePlan(
		c.Request.Context(), planID, req.TriggerData,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ex)
}

func (s *Server) setPlanEnabled(c *gin.Context) {
	planID := api.PlanID(c.Param("planID"))

	var req api.EnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	plan, err := s.engine.SetPlanEnabled(
		c.Request.Context(), planID, req.Enabled,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
