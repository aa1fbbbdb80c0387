package handlers

import (
	"net/http"
	"strconv"

	"teamtrivia/services"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
	}
}

func (h *CatalogHandler) GetRounds(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalogService.GetRounds())
}

func (h *CatalogHandler) GetRound(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid round index"})
		return
	}

	round, err := h.catalogService.GetRound(index)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, round)
}
