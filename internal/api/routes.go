package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"pantry/internal/api/handlers"
	"pantry/internal/api/services"
	"pantry/internal/api/ws"
	"pantry/internal/config"
)

type Dependencies struct {
	Inventory *services.InventoryService
	Pipeline  *services.IngestionPipeline
	Hub       *ws.Hub
	// BlobDir is served under /blobs when set.
	BlobDir string
}

func SetupRoutes(e *echo.Echo, deps Dependencies, cfg *config.Config) {
	e.GET("/health", healthCheck)

	wsHandler := handlers.NewWebSocketHandler(deps.Hub)
	e.GET("/api/ws", wsHandler.HandleConnection)

	if deps.BlobDir != "" {
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if strings.HasPrefix(c.Request().URL.Path, "/blobs") {
					if cfg.IsProduction() {
						c.Response().Header().Set("Cache-Control", "public, max-age=604800")
					} else {
						c.Response().Header().Set("Cache-Control", "public, max-age=3600")
					}
				}
				return next(c)
			}
		})
		e.Static("/blobs", deps.BlobDir)
	}

	e.Validator = NewValidator()

	ingestionHandler := handlers.NewIngestionHandler(deps.Pipeline, cfg.Ingest.MaxUploadBytes)
	e.POST("/upload-image", ingestionHandler.UploadImage)

	inventoryHandler := handlers.NewInventoryHandler(deps.Inventory)
	inventoryGroup := e.Group("/api/inventory")
	inventoryGroup.GET("", inventoryHandler.GetInventory)
	inventoryGroup.POST("", inventoryHandler.AddItem)
	inventoryGroup.POST("/merge", inventoryHandler.MergeItems)
	inventoryGroup.GET("/:name", inventoryHandler.GetItem)
	inventoryGroup.POST("/:name/remove", inventoryHandler.RemoveItem)
}

func healthCheck(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
