package api

import (
	"github.com/cloudwego/hertz/pkg/app/server"
)

// RegisterRoutes wires the REST surface onto the hertz server.
func RegisterRoutes(h *server.Hertz, tasks *TaskHandler, wallets *WalletHandler) {
	tasksGroup := h.Group("/tasks")
	{
		tasksGroup.POST("/", tasks.CreateTask)
		tasksGroup.GET("/", tasks.GetTasks)
		tasksGroup.GET("/schemas", tasks.GetContextSchemas)
		tasksGroup.POST("/validate", tasks.ValidateTaskContext)
		tasksGroup.GET("/:id", tasks.GetTaskByID)
		tasksGroup.GET("/:id/stats", tasks.GetTaskStats)
		tasksGroup.PUT("/:id/context", tasks.UpdateTaskContext)
		tasksGroup.POST("/:id/stop", tasks.StopTask)
		tasksGroup.POST("/:id/resume", tasks.ResumeTask)
		tasksGroup.DELETE("/:id", tasks.DeleteTask)
	}
	walletsGroup := h.Group("/wallet-groups")
	{
		walletsGroup.POST("/", wallets.CreateWalletGroup)
		walletsGroup.GET("/", wallets.GetWalletGroups)
		walletsGroup.GET("/:id", wallets.GetWalletGroup)
		walletsGroup.GET("/:id/wallets", wallets.GetGroupWallets)
		walletsGroup.GET("/:id/export", wallets.ExportWalletGroup)
		walletsGroup.DELETE("/:id", wallets.DeleteWalletGroup)
	}
}
