package httpx

import "github.com/gin-gonic/gin"

// Every response carries success plus whatever fields the handler
// adds (message, data, counts).

func OK(c *gin.Context, payload gin.H) {
	respond(c, 200, payload)
}

func Created(c *gin.Context, payload gin.H) {
	respond(c, 201, payload)
}

func Err(c *gin.Context, code int, msg any) {
	c.JSON(code, gin.H{"success": false, "message": msg})
}

func respond(c *gin.Context, code int, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["success"] = true
	c.JSON(code, payload)
}
