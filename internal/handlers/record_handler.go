package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rolegate/internal/services"
)

type RecordHandler struct {
	Records *services.RecordService
}

func NewRecordHandler(records *services.RecordService) *RecordHandler {
	return &RecordHandler{Records: records}
}

// GetByUserID godoc
// @Summary   Look up a verification record
// @Security  BearerAuth
// @Produce   json
// @Param     user_id  path  string  true  "User ID"
// @Success   200  {object}  models.VerificationRecord
// @Failure   404
// @Router    /admin/records/{user_id} [get]
func (h *RecordHandler) GetByUserID(c *gin.Context) {
	userID := c.Param("user_id")
	rec, err := h.Records.Lookup(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[records][get][err] user_id=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
