package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"realestate-leads/models"
	"realestate-leads/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultHotDeals = 10
)

var sortKeys = map[string]string{
	"createdAt":    models.SortCreatedAt,
	"price":        models.SortPrice,
	"hotDealScore": models.SortHotDealScore,
}

// registerProperties mounts the listing query routes. Static paths share a
// segment with :id, so gin resolves them first.
func (s *Server) registerProperties(rg *gin.RouterGroup) {
	rg.GET("", s.listProperties)
	rg.GET("/hot-deals", s.hotDeals)
	rg.GET("/hot-deals/personalized", s.personalizedHotDeals)
	rg.GET("/stats/overview", s.statsOverview)
	rg.GET("/stats/insights", s.insightsOverview)
	rg.GET("/cities", s.cities)
	if s.ingestor != nil {
		rg.POST("/ingest", s.runIngest)
		rg.GET("/ingest/status", s.ingestStatus)
	}
	rg.GET("/:id", s.getProperty)
	rg.GET("/:id/analysis", s.propertyAnalysis)
}

// GET /api/properties?city=...&minPrice=...&isHotDeal=true&sortBy=price&sortOrder=asc&page=2
func (s *Server) listProperties(c *gin.Context) {
	f := models.SearchFilter{
		Cities:        splitList(c.Query("city")),
		Neighborhoods: splitList(c.Query("neighborhood")),
		PropertyTypes: splitList(c.Query("propertyType")),
		SourceWebsite: c.Query("sourceWebsite"),
		MinPrice:      queryFloat(c, "minPrice"),
		MaxPrice:      queryFloat(c, "maxPrice"),
		MinRooms:      queryFloat(c, "minRooms"),
		MaxRooms:      queryFloat(c, "maxRooms"),
		MinSize:       queryFloat(c, "minSize"),
		MaxSize:       queryFloat(c, "maxSize"),
		HotOnly:       c.Query("isHotDeal") == "true",
		Status:        c.DefaultQuery("status", models.StatusActive),
		SortBy:        models.SortCreatedAt,
		Asc:           c.Query("sortOrder") == "asc",
	}
	if key, ok := sortKeys[c.Query("sortBy")]; ok {
		f.SortBy = key
	}
	page, limit := pagination(c, defaultPageSize)

	listings, total, err := s.properties.Find(c.Request.Context(), f, models.Page{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"properties": nonNil(listings),
		"pagination": gin.H{
			"currentPage":       page,
			"totalPages":        totalPages(total, limit),
			"totalProperties":   total,
			"propertiesPerPage": limit,
		},
	})
}

// GET /api/properties/hot-deals?limit=10
func (s *Server) hotDeals(c *gin.Context) {
	limit := queryInt(c, "limit", defaultHotDeals, maxPageSize)
	deals, err := s.properties.HotDeals(c.Request.Context(), models.SearchFilter{Status: models.StatusActive}, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hotDeals": nonNil(deals)})
}

// GET /api/properties/hot-deals/personalized?cities=...&minPrice=...&includeEvictionBuilding=false
func (s *Server) personalizedHotDeals(c *gin.Context) {
	var prefs services.Preferences
	if err := c.ShouldBindQuery(&prefs); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid preferences: "+err.Error())
		return
	}
	if err := prefs.Validate(); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	limit := queryInt(c, "limit", defaultHotDeals, maxPageSize)

	deals, err := s.properties.HotDeals(c.Request.Context(), prefs.Filter(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"personalizedHotDeals": nonNil(deals),
		"userPreferences":      prefs,
		"totalFound":           len(deals),
	})
}

// GET /api/properties/stats/overview
func (s *Server) statsOverview(c *gin.Context) {
	st, err := s.properties.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	top := st.TopCities
	if top == nil {
		top = []models.CityCount{}
	}
	c.JSON(http.StatusOK, gin.H{
		"totalProperties": st.TotalProperties,
		"hotDealsCount":   st.HotDeals,
		"averagePrice":    math.Round(st.AveragePrice),
		"topCities":       top,
	})
}

// GET /api/properties/stats/insights
func (s *Server) insightsOverview(c *gin.Context) {
	r, err := s.insights.Overview(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totalListings":      r.TotalListings,
		"hotDeals":           r.HotDeals,
		"averagePrice":       r.AveragePrice,
		"minPrice":           r.MinPrice,
		"maxPrice":           r.MaxPrice,
		"averagePricePerSqm": r.AveragePricePerSqm,
		"cheapestPerSqm":     r.CheapestPerSqm,
		"topHotDeals":        nonNil(r.TopHotDeals),
		"listingsByCity":     r.ListingsByCity,
		"listingsBySource":   r.ListingsBySource,
	})
}

// POST /api/properties/ingest runs one ingestion pass and reports on it.
func (s *Server) runIngest(c *gin.Context) {
	report, err := s.ingestor.Run(c.Request.Context())
	if err != nil && report == nil {
		s.fail(c, err)
		return
	}
	resp := gin.H{"message": "ingestion finished", "report": report}
	if err != nil {
		s.logger.Warn("On-demand ingestion finished with error: %v", err)
		resp["message"] = "ingestion finished with errors"
		resp["error"] = gin.H{"message": err.Error()}
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/properties/ingest/status
func (s *Server) ingestStatus(c *gin.Context) {
	st, err := s.properties.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ingest":          s.ingestor.Status(),
		"totalProperties": st.TotalProperties,
		"hotDealsCount":   st.HotDeals,
	})
}

// GET /api/properties/cities
func (s *Server) cities(c *gin.Context) {
	cities, err := s.properties.Cities(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if cities == nil {
		cities = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities})
}

// GET /api/properties/:id
func (s *Server) getProperty(c *gin.Context) {
	l, err := s.properties.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, notFound(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"property": l})
}

// GET /api/properties/:id/analysis
func (s *Server) propertyAnalysis(c *gin.Context) {
	l, analysis, err := s.analysis.Analyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if analysis.ComparableListings == nil {
		analysis.ComparableListings = []*models.Listing{}
	}
	c.JSON(http.StatusOK, gin.H{"property": l, "analysis": analysis})
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// queryFloat returns 0 for a missing or malformed value, which every filter
// treats as unconstrained.
func queryFloat(c *gin.Context, key string) float64 {
	f, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func queryInt(c *gin.Context, key string, fallback, max int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

func pagination(c *gin.Context, defaultLimit int) (page, limit int) {
	return queryInt(c, "page", 1, math.MaxInt32), queryInt(c, "limit", defaultLimit, maxPageSize)
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
