package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Home: корень сайта просто уводит на сообщество.
func Home(target string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Redirect(http.StatusFound, target)
	}
}

func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
