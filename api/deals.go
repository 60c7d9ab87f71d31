package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realestate-leads/models"
	"realestate-leads/services"
)

const defaultDealsPage = 10

func (s *Server) registerDeals(rg *gin.RouterGroup) {
	rg.POST("", s.createDeal)
	rg.GET("", s.listDeals)
	rg.GET("/stats/overview", s.dealStats)
	rg.GET("/:id", s.getDeal)
	rg.PUT("/:id/status", s.updateDealStatus)
	rg.POST("/:id/notes", s.addDealNote)
	rg.PUT("/:id", s.updateDeal)
}

type statusRequest struct {
	Status models.DealStatus `json:"status" binding:"required"`
}

type noteRequest struct {
	Content string `json:"content" binding:"required"`
}

// POST /api/deals
func (s *Server) createDeal(c *gin.Context) {
	var in services.CreateDealInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid payload")
		return
	}
	in.AgentID = agentID(c)

	d, err := s.deals.Create(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "deal created", "deal": d})
}

// GET /api/deals?status=contacted&page=1&limit=10
func (s *Server) listDeals(c *gin.Context) {
	page, limit := pagination(c, defaultDealsPage)
	status := models.DealStatus(c.Query("status"))

	deals, total, err := s.deals.List(c.Request.Context(), agentID(c), status, models.Page{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deals": nonNil(deals),
		"pagination": gin.H{
			"currentPage":  page,
			"totalPages":   totalPages(total, limit),
			"totalDeals":   total,
			"dealsPerPage": limit,
		},
	})
}

// GET /api/deals/stats/overview
func (s *Server) dealStats(c *gin.Context) {
	st, err := s.deals.Stats(c.Request.Context(), agentID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GET /api/deals/:id
func (s *Server) getDeal(c *gin.Context) {
	d, err := s.deals.Get(c.Request.Context(), c.Param("id"), agentID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": d})
}

// PUT /api/deals/:id/status
func (s *Server) updateDealStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "status is required")
		return
	}
	d, err := s.deals.UpdateStatus(c.Request.Context(), c.Param("id"), agentID(c), req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deal status updated", "deal": d})
}

// POST /api/deals/:id/notes
func (s *Server) addDealNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "note content is required")
		return
	}
	d, err := s.deals.AddNote(c.Request.Context(), c.Param("id"), agentID(c), req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "note added", "deal": d})
}

// PUT /api/deals/:id
func (s *Server) updateDeal(c *gin.Context) {
	var upd services.DealDetails
	if err := c.ShouldBindJSON(&upd); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid payload")
		return
	}
	d, err := s.deals.UpdateDetails(c.Request.Context(), c.Param("id"), agentID(c), upd)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deal updated", "deal": d, "roi": d.ROI()})
}
