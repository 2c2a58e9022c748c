package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/tpa-platform/pricing-engine/internal/engine"
	"github.com/tpa-platform/pricing-engine/internal/rules"
	"github.com/tpa-platform/pricing-engine/internal/store"
	"github.com/tpa-platform/pricing-engine/internal/types"
)

// calculateHandler handles POST /api/v1/pricing/calculate. Validation
// errors surface field by field; anything else becomes a generic 500 with
// the detail kept server-side.
func (s *Server) calculateHandler(c *gin.Context) {
	var req types.CalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed request body"})
		return
	}

	resp, err := s.engine.Calculate(c.Request.Context(), req)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"message": "validation failed",
				"fields":  verr.Fields,
			})
			return
		}
		log.WithFields(log.Fields{
			"procedure_id":  req.ProcedureID,
			"price_list_id": req.PriceListID,
			"error":         err.Error(),
		}).Error("Calculation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "calculation failed"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) listRulesHandler(c *gin.Context) {
	procedureID, ok1 := queryInt(c, "procedureId")
	priceListID, ok2 := queryInt(c, "priceListId")
	if !ok1 || !ok2 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "procedureId and priceListId query parameters are required"})
		return
	}

	ruleSet, err := s.store.RulesFor(c.Request.Context(), procedureID, priceListID)
	if err != nil {
		log.WithField("error", err.Error()).Error("Rule list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "rule lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": ruleSet, "totalElements": len(ruleSet)})
}

func (s *Server) getRuleHandler(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	rule, err := s.store.GetRule(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err, "rule lookup failed")
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) createRuleHandler(c *gin.Context) {
	var rule types.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed rule body"})
		return
	}
	if err := rules.ValidateRule(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	created, err := s.store.CreateRule(c.Request.Context(), rule)
	if err != nil {
		log.WithField("error", err.Error()).Error("Rule create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "rule create failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateRuleHandler(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var rule types.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed rule body"})
		return
	}
	rule.ID = id
	if err := rules.ValidateRule(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	updated, err := s.store.UpdateRule(c.Request.Context(), rule)
	if err != nil {
		s.storeError(c, err, "rule update failed")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteRuleHandler(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteRule(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "rule delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listPointRatesHandler(c *gin.Context) {
	degreeID, ok := queryInt(c, "insuranceDegreeId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "insuranceDegreeId query parameter is required"})
		return
	}
	rates, err := s.store.PointRates(c.Request.Context(), degreeID)
	if err != nil {
		log.WithField("error", err.Error()).Error("Point rate list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "point rate lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": rates, "totalElements": len(rates)})
}

func (s *Server) createPointRateHandler(c *gin.Context) {
	var rate types.PointRate
	if err := c.ShouldBindJSON(&rate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed point rate body"})
		return
	}
	if rate.PointPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "pointPrice must be positive"})
		return
	}

	created, err := s.store.CreatePointRate(c.Request.Context(), rate)
	if err != nil {
		log.WithField("error", err.Error()).Error("Point rate create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "point rate create failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) deletePointRateHandler(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeletePointRate(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "point rate delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listPeriodDiscountsHandler(c *gin.Context) {
	procedureID, ok := queryInt(c, "procedureId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "procedureId query parameter is required"})
		return
	}
	discounts, err := s.store.PeriodDiscounts(c.Request.Context(), procedureID)
	if err != nil {
		log.WithField("error", err.Error()).Error("Period discount list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "period discount lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": discounts, "totalElements": len(discounts)})
}

func (s *Server) createPeriodDiscountHandler(c *gin.Context) {
	var discount types.PeriodDiscount
	if err := c.ShouldBindJSON(&discount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed period discount body"})
		return
	}
	if discount.ProcedureID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "procedure is required"})
		return
	}
	if discount.DiscountPct <= 0 || discount.DiscountPct > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "discountPct must be in (0, 100]"})
		return
	}

	created, err := s.store.CreatePeriodDiscount(c.Request.Context(), discount)
	if err != nil {
		log.WithField("error", err.Error()).Error("Period discount create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "period discount create failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) deletePeriodDiscountHandler(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeletePeriodDiscount(c.Request.Context(), id); err != nil {
		s.storeError(c, err, "period discount delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) storeError(c *gin.Context, err error, message string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
		return
	}
	log.WithField("error", err.Error()).Error(message)
	c.JSON(http.StatusInternalServerError, gin.H{"message": message})
}

func paramInt(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
