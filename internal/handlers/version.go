package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindgraph-backend/internal/httpresp"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func GetVersion(c *gin.Context) {
	httpresp.OK(c, gin.H{"version": Version})
}
