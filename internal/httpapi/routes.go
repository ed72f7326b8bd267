package httpapi

import "github.com/gin-gonic/gin"

// Mount registers the call API. session guards routes that act on behalf of a user.
// Each operation is reachable on its legacy path and under /v1.
func Mount(r gin.IRouter, h Handlers, session gin.HandlerFunc) {
	r.POST("/login", h.Login)
	r.POST("/register_fcm", session, h.RegisterEndpoint)
	r.POST("/trigger_call", session, h.TriggerCall)
	r.GET("/get_agora_token", h.IssueChannelCredential)

	v1 := r.Group("/v1")
	{
		v1.POST("/login", h.Login)
		v1.POST("/endpoints", session, h.RegisterEndpoint)
		v1.POST("/calls", session, h.TriggerCall)
		v1.GET("/credentials", h.IssueChannelCredential)
	}
}
