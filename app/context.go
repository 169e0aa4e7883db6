package app

import "github.com/gin-gonic/gin"

const appKey = "app"

// Middleware makes a *App available to every handler via FromContext,
// mirroring db.SetDBtoContext's pattern for the rest of the wiring.
func Middleware(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(appKey, a)
		c.Next()
	}
}

func FromContext(c *gin.Context) *App {
	v, ok := c.Get(appKey)
	if !ok {
		return nil
	}
	a, _ := v.(*App)
	return a
}
